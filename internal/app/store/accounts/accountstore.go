// internal/app/store/accounts/accountstore.go
package accountstore

import (
	"context"
	"time"

	"github.com/dalemusser/chimeo/internal/app/gateway"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection holds one document per provisioned tenant, keyed by email.
const Collection = "users"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

var _ gateway.AccountStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, email string) (models.UserAccount, error) {
	var acct models.UserAccount
	err := s.c.FindOne(ctx, bson.M{"_id": models.NormalizeEmail(email)}).Decode(&acct)
	if err == mongo.ErrNoDocuments {
		return models.UserAccount{}, gateway.ErrNotFound
	}
	if err != nil {
		return models.UserAccount{}, err
	}
	return acct, nil
}

// UpsertTrial writes the trial fields of acct, creating the account when
// missing. createdAt is only written on insert so re-provisioning keeps it.
func (s *Store) UpsertTrial(ctx context.Context, acct models.UserAccount) (models.UserAccount, error) {
	email := models.NormalizeEmail(acct.Email)
	update := bson.M{
		"$set": bson.M{
			"organizationName":   acct.OrganizationName,
			"organizationType":   acct.OrganizationType,
			"currentTier":        acct.CurrentTier,
			"subscriptionStatus": acct.SubscriptionStatus,
			"trialStartDate":     acct.TrialStartDate,
			"trialEndDate":       acct.TrialEndDate,
			"lastLoginAt":        acct.LastLoginAt,
			"updatedAt":          acct.UpdatedAt,
		},
		"$setOnInsert": bson.M{"createdAt": acct.CreatedAt},
		"$unset":       bson.M{"trialExpiredAt": ""},
	}
	if _, err := s.c.UpdateOne(ctx, bson.M{"_id": email}, update, options.Update().SetUpsert(true)); err != nil {
		return models.UserAccount{}, err
	}
	return s.Get(ctx, email)
}

// ExpireTrial is conditional on the account still being in a lapsed trial,
// so repeated or concurrent checks transition it at most once.
func (s *Store) ExpireTrial(ctx context.Context, email string, at time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":          models.NormalizeEmail(email),
			"currentTier":  models.TierPremiumTrial,
			"trialEndDate": bson.M{"$lte": at},
		},
		bson.M{"$set": bson.M{
			"currentTier":        models.TierTrialExpired,
			"subscriptionStatus": models.SubscriptionTrialExpired,
			"trialExpiredAt":     at,
			"updatedAt":          at,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *Store) SetTier(ctx context.Context, email, tier, subscriptionStatus string, at time.Time) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": models.NormalizeEmail(email)},
		bson.M{"$set": bson.M{
			"currentTier":        tier,
			"subscriptionStatus": subscriptionStatus,
			"updatedAt":          at,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return gateway.ErrNotFound
	}
	return nil
}

func (s *Store) TouchLogin(ctx context.Context, email string, at time.Time) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": models.NormalizeEmail(email)},
		bson.M{"$set": bson.M{"lastLoginAt": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return gateway.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]models.UserAccount, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (s *Store) ListLapsedTrials(ctx context.Context, at time.Time, limit int64) ([]models.UserAccount, error) {
	opts := options.Find().SetSort(bson.D{{Key: "trialEndDate", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.find(ctx, bson.M{
		"currentTier":  models.TierPremiumTrial,
		"trialEndDate": bson.M{"$lte": at},
	}, opts)
}

// CountByTier returns the number of accounts in tier.
func (s *Store) CountByTier(ctx context.Context, tier string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"currentTier": tier})
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.UserAccount, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.UserAccount
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
