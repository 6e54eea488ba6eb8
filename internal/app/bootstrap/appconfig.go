// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Store backends.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (CHIMEO_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// covers the framework-level settings (ports, TLS, log level, CORS).
type AppConfig struct {
	// Persistence
	StoreBackend     string // "mongo" or "memory" (local development only)
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64

	// Admin sessions
	SessionKey    string
	SessionName   string
	SessionDomain string
	SessionMaxAge time.Duration

	// Email/SMTP. An empty host logs notifications instead of sending them.
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// SiteName and BaseURL appear in notification emails; BaseURL also
	// builds the Google OAuth callback.
	SiteName string
	BaseURL  string

	// Bootstrap admin, created on startup if missing.
	AdminEmail    string
	AdminPassword string

	// Google OAuth admin sign-in (optional)
	GoogleClientID     string
	GoogleClientSecret string

	// ServiceToken guards /api/entitlements. Empty disables the API.
	ServiceToken string

	// Trials
	TrialLength         time.Duration
	ExpirationSweepSpec string // cron spec; empty disables
	ReconcileSpec       string // cron spec; empty disables
	SweepBatch          int

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth       string
	AuditLogOnboarding string
}
