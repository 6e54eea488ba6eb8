package metricsstore_test

import (
	"testing"
	"time"

	metricsstore "github.com/dalemusser/chimeo/internal/app/store/metrics"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/dalemusser/chimeo/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFetchCounts_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	counts := metricsstore.FetchCounts(ctx, db, time.Now())
	if counts != (metricsstore.Counts{}) {
		t.Errorf("expected zero counts, got %+v", counts)
	}
}

func TestFetchCounts_WithData(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()

	fixtures.CreateRequest(ctx, "Pending One", "p1@x.org")
	fixtures.CreateRequest(ctx, "Pending Two", "p2@x.org")
	rejected := fixtures.CreateRequest(ctx, "Rejected", "r@x.org")
	if _, err := db.Collection("organizationRequests").UpdateByID(ctx, rejected.ID,
		bson.M{"$set": bson.M{"status": models.RequestRejected}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	fixtures.CreateTrialAccount(ctx, "live@x.org", now.Add(24*time.Hour))
	fixtures.CreateTrialAccount(ctx, "lapsed@x.org", now.Add(-time.Hour))
	fixtures.CreateTrialAccount(ctx, "expired@x.org", now.Add(-48*time.Hour))
	if _, err := db.Collection("users").UpdateOne(ctx, bson.M{"_id": "expired@x.org"},
		bson.M{"$set": bson.M{"currentTier": models.TierTrialExpired}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	counts := metricsstore.FetchCounts(ctx, db, now)

	if counts.Pending != 2 {
		t.Errorf("Pending: got %d, want 2", counts.Pending)
	}
	if counts.Rejected != 1 {
		t.Errorf("Rejected: got %d, want 1", counts.Rejected)
	}
	if counts.Approved != 0 {
		t.Errorf("Approved: got %d, want 0", counts.Approved)
	}
	if counts.Trials != 1 {
		t.Errorf("Trials: got %d, want 1 (lapsed trial excluded)", counts.Trials)
	}
	if counts.TrialsExpired != 1 {
		t.Errorf("TrialsExpired: got %d, want 1", counts.TrialsExpired)
	}
}
