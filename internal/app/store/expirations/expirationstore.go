// internal/app/store/expirations/expirationstore.go
package expirationstore

import (
	"context"
	"time"

	"github.com/dalemusser/chimeo/internal/app/gateway"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection stores one scheduled expiration check per account.
const Collection = "trialExpirations"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

var _ gateway.ExpirationQueue = (*Store)(nil)

// Schedule upserts the task for email, resetting attempts and completion.
func (s *Store) Schedule(ctx context.Context, email string, dueAt time.Time) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": models.NormalizeEmail(email)},
		bson.M{
			"$set": bson.M{
				"dueAt":     dueAt,
				"status":    models.TaskScheduled,
				"attempts":  0,
				"updatedAt": now,
			},
			"$unset":       bson.M{"lastError": "", "completedAt": ""},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Store) Due(ctx context.Context, at time.Time, limit int64) ([]models.ExpirationTask, error) {
	opts := options.Find().SetSort(bson.D{{Key: "dueAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.find(ctx, bson.M{"status": models.TaskScheduled, "dueAt": bson.M{"$lte": at}}, opts)
}

func (s *Store) Scheduled(ctx context.Context) ([]models.ExpirationTask, error) {
	return s.find(ctx, bson.M{"status": models.TaskScheduled}, options.Find().SetSort(bson.D{{Key: "dueAt", Value: 1}}))
}

// Complete marks the task done. Completing a missing task is not an error.
func (s *Store) Complete(ctx context.Context, email string, at time.Time) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": models.NormalizeEmail(email)},
		bson.M{"$set": bson.M{"status": models.TaskDone, "completedAt": at, "updatedAt": at}},
	)
	return err
}

func (s *Store) Fail(ctx context.Context, email string, at time.Time, reason string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": models.NormalizeEmail(email)},
		bson.M{
			"$inc": bson.M{"attempts": 1},
			"$set": bson.M{"lastError": reason, "updatedAt": at},
		},
	)
	return err
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.ExpirationTask, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ExpirationTask
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
