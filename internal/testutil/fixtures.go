package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// PendingRequest returns a complete, valid pending request for orgName that
// has not been stored anywhere.
func PendingRequest(orgName, contactEmail string, submittedAt time.Time) models.OrganizationRequest {
	addr := models.Address{Street: "12 Oak St", City: "Springfield", State: "IL", Zip: "62701"}
	return models.OrganizationRequest{
		ID:              primitive.NewObjectID(),
		OrgName:         orgName,
		OrgNameCI:       text.Fold(orgName),
		OrgType:         models.OrgTypeChurch,
		OriginalOrgType: models.OrgTypeChurch,
		OrgSize:         120,
		Address:         addr,
		OrgAddress:      addr.Full(),
		ContactName:     "Pat Example",
		OfficeEmail:     "office@example.org",
		ContactEmail:    contactEmail,
		ContactPhone:    "555-0100",
		ExpectedUsage:   4,
		UseCase:         models.UseCaseEventNotifications,
		Status:          models.RequestPending,
		SubmittedAt:     submittedAt,
	}
}

// CreateRequest inserts a pending request.
func (f *Fixtures) CreateRequest(ctx context.Context, orgName, contactEmail string) models.OrganizationRequest {
	f.t.Helper()

	req := PendingRequest(orgName, contactEmail, time.Now().UTC().Truncate(time.Millisecond))
	if _, err := f.db.Collection("organizationRequests").InsertOne(ctx, req); err != nil {
		f.t.Fatalf("failed to create test request: %v", err)
	}
	return req
}

// CreateTrialAccount inserts a premium_trial account whose trial ends at end.
func (f *Fixtures) CreateTrialAccount(ctx context.Context, email string, end time.Time) models.UserAccount {
	f.t.Helper()

	start := end.Add(-models.TrialLength)
	acct := models.UserAccount{
		Email:              models.NormalizeEmail(email),
		OrganizationName:   "Fixture Org",
		OrganizationType:   models.OrgTypeSchool,
		CurrentTier:        models.TierPremiumTrial,
		SubscriptionStatus: models.SubscriptionTrial,
		TrialStartDate:     &start,
		TrialEndDate:       &end,
		CreatedAt:          start,
		LastLoginAt:        start,
		UpdatedAt:          start,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, acct); err != nil {
		f.t.Fatalf("failed to create test account: %v", err)
	}
	return acct
}
