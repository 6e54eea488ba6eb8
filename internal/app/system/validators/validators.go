// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/chimeo/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("organizationRequests", orgRequestsSchema())
	ensure("users", accountsSchema())
	ensure("trialExpirations", expirationsSchema())
	ensure("admins", adminsSchema())
	ensure("auditEvents", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Debug("collection exists", zap.String("collection", name))
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func commandErrMatches(err error, code int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == code {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isNamespaceExistsErr(err error) bool {
	return commandErrMatches(err, 48, "already exists", "namespace exists")
}

func isNoSuchCommand(err error) bool {
	return commandErrMatches(err, 59, "no such command")
}

func isNotImplemented(err error) bool {
	return commandErrMatches(err, 115, "not implemented", "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func enumOf(values []string) bson.M {
	a := make(bson.A, 0, len(values))
	for _, v := range values {
		a = append(a, v)
	}
	return bson.M{"enum": a}
}

func orgRequestsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"orgName", "orgType", "orgSize", "contactName", "contactEmail", "contactPhone", "status", "submittedAt"},
			"properties": bson.M{
				"orgName":       nonBlank,
				"orgType":       nonBlank,
				"orgSize":       bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
				"expectedUsage": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
				"contactName":   nonBlank,
				"contactEmail":  nonBlank,
				"contactPhone":  nonBlank,
				"status":        enumOf(models.RequestStatuses),
				"submittedAt":   bson.M{"bsonType": "date"},
			},
		},
	}
}

func accountsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"currentTier", "subscriptionStatus"},
			"properties": bson.M{
				"currentTier": enumOf(models.Tiers),
				"subscriptionStatus": enumOf([]string{
					models.SubscriptionNone,
					models.SubscriptionTrial,
					models.SubscriptionTrialExpired,
					models.SubscriptionActive,
				}),
				"trialEndDate": bson.M{"bsonType": "date"},
			},
		},
	}
}

func expirationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"dueAt", "status"},
			"properties": bson.M{
				"dueAt":  bson.M{"bsonType": "date"},
				"status": enumOf([]string{models.TaskScheduled, models.TaskDone}),
			},
		},
	}
}

func adminsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "emailCI", "status"},
			"properties": bson.M{
				"email":   nonBlank,
				"emailCI": nonBlank,
				"status":  enumOf([]string{models.AdminActive, models.AdminDisabled}),
			},
		},
	}
}
