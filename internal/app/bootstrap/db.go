// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	adminstore "github.com/dalemusser/chimeo/internal/app/store/admins"
	"github.com/dalemusser/chimeo/internal/app/store/memstore"
	"github.com/dalemusser/chimeo/internal/app/system/indexes"
	"github.com/dalemusser/chimeo/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// connectTimeout bounds the initial connect and ping.
const connectTimeout = 10 * time.Second

// ConnectDB opens the configured backend. For Mongo it connects and pings
// before returning so a bad URI or unreachable server fails startup.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	return connect(ctx, appCfg, logger)
}

func connect(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	deps := DBDeps{app: new(App)}

	if appCfg.StoreBackend == BackendMemory {
		deps.Memory = memstore.New()
		logger.Info("in-memory store ready")
		return deps, nil
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	deps.MongoClient = client
	deps.MongoDatabase = client.Database(appCfg.MongoDatabase)
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", appCfg.MongoMaxPoolSize))
	return deps, nil
}

// EnsureSchema creates indexes and validators, then makes sure the
// bootstrap admin exists.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase != nil {
		if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
			logger.Error("ensure indexes failed", zap.Error(err))
			return err
		}
		if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
			logger.Error("ensure validators failed", zap.Error(err))
			return err
		}
	}
	return ensureBootstrapAdmin(ctx, deps, appCfg.AdminEmail, appCfg.AdminPassword, logger)
}

// ensureBootstrapAdmin creates the configured admin when missing. An
// existing admin is left alone, including its password.
func ensureBootstrapAdmin(ctx context.Context, deps DBDeps, email, password string, logger *zap.Logger) error {
	if email == "" {
		logger.Warn("no admin_email configured; the review console has no bootstrap admin")
		return nil
	}

	var (
		created bool
		err     error
	)
	switch {
	case deps.MongoDatabase != nil:
		created, err = adminstore.New(deps.MongoDatabase).EnsureBootstrap(ctx, email, password)
	case deps.Memory != nil:
		created, err = deps.Memory.Admins.EnsureBootstrap(ctx, email, password)
	default:
		return fmt.Errorf("no store backend connected")
	}
	if err != nil {
		logger.Error("ensure bootstrap admin failed", zap.String("email", email), zap.Error(err))
		return err
	}
	if created {
		logger.Info("created bootstrap admin",
			zap.String("email", email),
			zap.Bool("password_login", password != ""))
	}
	return nil
}
