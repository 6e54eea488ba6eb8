// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	for _, step := range []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"organizationRequests", ensureOrganizationRequests},
		{"users", ensureUsers},
		{"trialExpirations", ensureTrialExpirations},
		{"admins", ensureAdmins},
		{"auditEvents", ensureAuditEvents},
	} {
		if err := step.fn(ctx, db); err != nil {
			problems = append(problems, step.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensureOrganizationRequests(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("organizationRequests"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "submittedAt", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_orgreq_submitted"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "submittedAt", Value: -1}},
			Options: options.Index().SetName("idx_orgreq_status_submitted"),
		},
		{
			Keys:    bson.D{{Key: "orgNameCI", Value: 1}},
			Options: options.Index().SetName("idx_orgreq_orgnameci"),
		},
	})
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			// lapsed-trial sweep
			Keys:    bson.D{{Key: "currentTier", Value: 1}, {Key: "trialEndDate", Value: 1}},
			Options: options.Index().SetName("idx_users_tier_trialend"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_users_created"),
		},
	})
}

func ensureTrialExpirations(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("trialExpirations"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "dueAt", Value: 1}},
			Options: options.Index().SetName("idx_trialexp_status_due"),
		},
	})
}

func ensureAdmins(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("admins"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "emailCI", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_admins_emailci"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("auditEvents"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_ts"),
		},
		{
			Keys:    bson.D{{Key: "requestId", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_request_ts"),
		},
		{
			Keys:    bson.D{{Key: "accountEmail", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_account_ts"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "eventType", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_cat_type_ts"),
		},
	})
}

/* -------------------------------------------------------------------------- */
/* Reconcile a set of desired indexes for one collection                       */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolVal(b *bool) bool {
	return b != nil && *b
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return strings.Contains(err.Error(), "E11000")
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

// ensureIndexSet creates each desired index. An index with the same keys is
// reused when its uniqueness matches; otherwise, or when only the name
// differs, it is dropped and recreated.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, desired []mongo.IndexModel) error {
	existing, err := listExisting(ctx, coll)
	if err != nil {
		// Collection may not exist yet; CreateOne will create it.
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range desired {
		var name string
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[sig]; ok {
			if boolVal(ex.Unique) == boolVal(unique) && (name == "" || ex.Name == name) {
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", sig))
				continue
			}
			zap.L().Info("replacing index",
				zap.String("collection", coll.Name()),
				zap.String("from", ex.Name),
				zap.String("to", name),
				zap.Bool("unique", boolVal(unique)))
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil {
			if isDuplicateKeyErr(err) && boolVal(unique) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", name),
				zap.String("keys", sig),
				zap.Error(err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", created),
			zap.String("keys", sig),
			zap.Bool("unique", boolVal(unique)),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
