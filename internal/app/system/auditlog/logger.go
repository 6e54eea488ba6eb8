// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/chimeo/internal/app/store/audit"
	"go.uber.org/zap"
)

// Destinations for a category. Anything else is treated as "all".
const (
	All = "all" // MongoDB + zap
	DB  = "db"
	Log = "log"
	Off = "off"
)

// Config holds audit logging configuration per event category.
type Config struct {
	// Auth covers admin sign-in and sign-out.
	Auth string
	// Onboarding covers request and trial transitions.
	Onboarding string
}

// Store is where persisted audit events go. *audit.Store satisfies it, as
// does the in-memory backend.
type Store interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It logs to the Store and to structured logs (via zap).
type Logger struct {
	store  Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil, in which case only the
// zap destination is used.
func New(store Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// ClientIP extracts the client IP from the request.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.Actor != "" {
		fields = append(fields, zap.String("actor", event.Actor))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.AccountEmail != "" {
		fields = append(fields, zap.String("account_email", event.AccountEmail))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op so callers and tests need not guard it.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := All
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryRequest, audit.CategoryTrial:
		setting = l.config.Onboarding
	}
	if setting == "" {
		setting = All
	}
	if setting == Off {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful admin sign-in. method is "password" or "google".
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, email, method string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		Actor:     email,
		IP:        ClientIP(r),
		Success:   true,
		Details:   map[string]string{"auth_method": method},
	})
}

// LoginFailed logs a failed admin sign-in. eventType is one of the
// audit.EventLoginFailed* constants.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, attemptedEmail, eventType, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		Actor:         attemptedEmail,
		IP:            ClientIP(r),
		Success:       false,
		FailureReason: reason,
	})
}

// Logout logs an admin sign-out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		Actor:     email,
		IP:        ClientIP(r),
		Success:   true,
	})
}

// --- Onboarding Events ---

// RequestSubmitted logs a new pending organization request.
func (l *Logger) RequestSubmitted(ctx context.Context, requestID, orgName, contactEmail string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryRequest,
		EventType:    audit.EventRequestSubmitted,
		RequestID:    requestID,
		AccountEmail: contactEmail,
		Success:      true,
		Details:      map[string]string{"org_name": orgName},
	})
}

// RequestApproved logs an approval by actor.
func (l *Logger) RequestApproved(ctx context.Context, requestID, contactEmail, actor string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryRequest,
		EventType:    audit.EventRequestApproved,
		Actor:        actor,
		RequestID:    requestID,
		AccountEmail: contactEmail,
		Success:      true,
	})
}

// RequestRejected logs a rejection by actor.
func (l *Logger) RequestRejected(ctx context.Context, requestID, actor, reason string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryRequest,
		EventType: audit.EventRequestRejected,
		Actor:     actor,
		RequestID: requestID,
		Success:   true,
		Details:   map[string]string{"reason": reason},
	})
}

// TrialProvisioned logs a trial grant ending at end.
func (l *Logger) TrialProvisioned(ctx context.Context, email string, end time.Time) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryTrial,
		EventType:    audit.EventTrialProvisioned,
		AccountEmail: email,
		Success:      true,
		Details:      map[string]string{"trial_end": end.UTC().Format(time.RFC3339)},
	})
}

// TrialProvisionFailed logs an approval whose account could not be written.
func (l *Logger) TrialProvisionFailed(ctx context.Context, requestID, email string, err error) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryTrial,
		EventType:     audit.EventTrialProvisioned,
		RequestID:     requestID,
		AccountEmail:  email,
		Success:       false,
		FailureReason: err.Error(),
	})
}

// TrialExpired logs a premium_trial → trial_expired transition.
func (l *Logger) TrialExpired(ctx context.Context, email string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryTrial,
		EventType:    audit.EventTrialExpired,
		Actor:        "system",
		AccountEmail: email,
		Success:      true,
	})
}

// TierChanged logs an admin-initiated tier change.
func (l *Logger) TierChanged(ctx context.Context, email, actor, from, to string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryTrial,
		EventType:    audit.EventTierChanged,
		Actor:        actor,
		AccountEmail: email,
		Success:      true,
		Details:      map[string]string{"from": from, "to": to},
	})
}

// TrialRepaired logs a reconciliation that provisioned a missing account.
func (l *Logger) TrialRepaired(ctx context.Context, requestID, email string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryTrial,
		EventType:    audit.EventTrialRepaired,
		Actor:        "system",
		RequestID:    requestID,
		AccountEmail: email,
		Success:      true,
	})
}
