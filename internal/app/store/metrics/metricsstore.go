package metricsstore

import (
	"context"
	"time"

	accountstore "github.com/dalemusser/chimeo/internal/app/store/accounts"
	orgrequeststore "github.com/dalemusser/chimeo/internal/app/store/orgrequests"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Counts is the set of pipeline totals exported as gauges.
type Counts struct {
	Pending       int64
	Approved      int64
	Rejected      int64
	Trials        int64
	TrialsExpired int64
	DueChecks     int64
}

// FetchCounts returns the onboarding pipeline totals.
// Intentionally tolerant: on error it returns 0 for that counter.
func FetchCounts(ctx context.Context, db *mongo.Database, now time.Time) Counts {
	var out Counts

	if byStatus, err := orgrequeststore.New(db).CountByStatus(ctx); err == nil {
		out.Pending = byStatus[models.RequestPending]
		out.Approved = byStatus[models.RequestApproved]
		out.Rejected = byStatus[models.RequestRejected]
	}

	// Lapsed trials still carry premium_trial until the sweep expires them.
	if n, err := db.Collection(accountstore.Collection).CountDocuments(ctx, bson.M{
		"currentTier":  models.TierPremiumTrial,
		"trialEndDate": bson.M{"$gt": now},
	}); err == nil {
		out.Trials = n
	}
	if n, err := accountstore.New(db).CountByTier(ctx, models.TierTrialExpired); err == nil {
		out.TrialsExpired = n
	}

	if n, err := db.Collection("trialExpirations").CountDocuments(ctx, bson.M{
		"status": models.TaskScheduled,
		"dueAt":  bson.M{"$lte": now},
	}); err == nil {
		out.DueChecks = n
	}

	return out
}
