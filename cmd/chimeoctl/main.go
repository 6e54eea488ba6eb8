// Command chimeoctl runs Chimeo maintenance tasks against the production
// database: trial expiration sweeps, approval reconciliation and one-off
// account checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dalemusser/chimeo/internal/app/bootstrap"
	"github.com/dalemusser/chimeo/internal/app/system/auditlog"
	"github.com/dalemusser/chimeo/internal/app/system/limits"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagMongoURI string
	flagDatabase string
	flagTimeout  time.Duration
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "chimeoctl",
	Short: "chimeoctl runs Chimeo maintenance tasks",
	Long: "chimeoctl runs Chimeo maintenance tasks against the configured MongoDB.\n" +
		"Settings default to the same CHIMEO_* environment variables the server reads.",
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagMongoURI, "mongo-uri", envOr("CHIMEO_MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	pf.StringVar(&flagDatabase, "mongo-database", envOr("CHIMEO_MONGO_DATABASE", "chimeo"), "MongoDB database name")
	pf.DurationVar(&flagTimeout, "timeout", 5*time.Minute, "overall deadline for the command")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(sweepCmd, reconcileCmd, checkCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// appConfig mirrors the server's configuration for the parts chimeoctl
// touches. Mail settings come from the environment so expiry notices go
// out the same way they would from the server.
func appConfig() bootstrap.AppConfig {
	return bootstrap.AppConfig{
		StoreBackend:       bootstrap.BackendMongo,
		MongoURI:           flagMongoURI,
		MongoDatabase:      flagDatabase,
		MailSMTPHost:       os.Getenv("CHIMEO_MAIL_SMTP_HOST"),
		MailSMTPPort:       envInt("CHIMEO_MAIL_SMTP_PORT", 587),
		MailSMTPUser:       os.Getenv("CHIMEO_MAIL_SMTP_USER"),
		MailSMTPPass:       os.Getenv("CHIMEO_MAIL_SMTP_PASS"),
		MailFrom:           envOr("CHIMEO_MAIL_FROM", "noreply@chimeo.app"),
		MailFromName:       envOr("CHIMEO_MAIL_FROM_NAME", "Chimeo"),
		SiteName:           envOr("CHIMEO_SITE_NAME", "Chimeo"),
		BaseURL:            envOr("CHIMEO_BASE_URL", "http://localhost:3000"),
		TrialLength:        models.TrialLength,
		SweepBatch:         limits.MaxSweepBatch,
		AuditLogAuth:       envOr("CHIMEO_AUDIT_LOG_AUTH", auditlog.All),
		AuditLogOnboarding: envOr("CHIMEO_AUDIT_LOG_ONBOARDING", auditlog.All),
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if flagVerbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// withApp connects, builds the service graph and runs fn. Queued
// notifications are drained before the connection closes.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *bootstrap.App) error) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	cfg := appConfig()
	deps, err := bootstrap.ConnectDB(ctx, nil, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutCancel()
		_ = bootstrap.Shutdown(shutCtx, nil, cfg, deps, logger)
	}()

	a, err := bootstrap.Build(cfg, deps, logger)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		logger.Warn("stop did not finish cleanly", zap.Error(err))
	}
	return runErr
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "ignoring %s=%q: not a number\n", key, v)
	}
	return def
}
