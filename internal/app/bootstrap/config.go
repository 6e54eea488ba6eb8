// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/chimeo/internal/app/system/auditlog"
	"github.com/dalemusser/chimeo/internal/app/system/limits"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for Chimeo.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: CHIMEO_MONGO_URI, CHIMEO_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "store_backend", Default: BackendMongo, Desc: "Store backend: 'mongo' or 'memory' (development only)"},
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "chimeo", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "chimeo-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "12h", Desc: "Admin session lifetime"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank logs emails instead of sending)"},
	{Name: "mail_smtp_port", Default: 587, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@chimeo.app", Desc: "From email address"},
	{Name: "mail_from_name", Default: "Chimeo", Desc: "From display name"},

	{Name: "site_name", Default: "Chimeo", Desc: "Product name used in emails"},
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Public base URL for links and OAuth callbacks"},

	// Review console
	{Name: "admin_email", Default: "", Desc: "Bootstrap admin email (created on startup if missing)"},
	{Name: "admin_password", Default: "", Desc: "Bootstrap admin password (blank means Google sign-in only)"},
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	{Name: "service_token", Default: "", Desc: "Bearer token for /api/entitlements (blank disables the API)"},

	// Trials
	{Name: "trial_length", Default: "720h", Desc: "Premium trial length"},
	{Name: "expiration_sweep_spec", Default: "@every 5m", Desc: "Cron spec for the trial expiration sweep (blank disables)"},
	{Name: "reconcile_spec", Default: "@every 15m", Desc: "Cron spec for approval reconciliation (blank disables)"},
	{Name: "sweep_batch", Default: limits.MaxSweepBatch, Desc: "Maximum accounts checked per sweep"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: auditlog.All, Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_onboarding", Default: auditlog.All, Desc: "Request and trial event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// environment variables (WAFFLE_* for core, CHIMEO_* for app) and flags,
// with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CHIMEO", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		StoreBackend:     strings.ToLower(strings.TrimSpace(appValues.String("store_backend"))),
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 12*time.Hour),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		SiteName: appValues.String("site_name"),
		BaseURL:  strings.TrimRight(appValues.String("base_url"), "/"),

		AdminEmail:         appValues.String("admin_email"),
		AdminPassword:      appValues.String("admin_password"),
		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		ServiceToken: appValues.String("service_token"),

		TrialLength:         appValues.Duration("trial_length", models.TrialLength),
		ExpirationSweepSpec: appValues.String("expiration_sweep_spec"),
		ReconcileSpec:       appValues.String("reconcile_spec"),
		SweepBatch:          appValues.Int("sweep_batch"),

		AuditLogAuth:       appValues.String("audit_log_auth"),
		AuditLogOnboarding: appValues.String("audit_log_onboarding"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation. The Mongo URI is
// checked before any connection is attempted.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	return validate(coreCfg.Env, appCfg, logger)
}

func validate(env string, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.StoreBackend {
	case BackendMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if strings.TrimSpace(appCfg.MongoDatabase) == "" {
			return fmt.Errorf("mongo_database is required")
		}
	case BackendMemory:
		if env == "prod" {
			return fmt.Errorf("store_backend=memory is not allowed in prod")
		}
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		return fmt.Errorf("unknown store_backend %q (want %q or %q)", appCfg.StoreBackend, BackendMongo, BackendMemory)
	}

	if appCfg.TrialLength <= 0 {
		return fmt.Errorf("trial_length must be positive, got %s", appCfg.TrialLength)
	}
	if appCfg.SweepBatch < 0 {
		return fmt.Errorf("sweep_batch must not be negative")
	}
	for _, v := range []struct{ key, val string }{
		{"audit_log_auth", appCfg.AuditLogAuth},
		{"audit_log_onboarding", appCfg.AuditLogOnboarding},
	} {
		switch v.val {
		case "", auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			return fmt.Errorf("%s: unknown destination %q", v.key, v.val)
		}
	}
	if (appCfg.GoogleClientID == "") != (appCfg.GoogleClientSecret == "") {
		return fmt.Errorf("google_client_id and google_client_secret must be set together")
	}
	if env == "prod" && strings.HasPrefix(appCfg.SessionKey, "dev-only") {
		return fmt.Errorf("session_key must be changed in prod")
	}
	return nil
}
