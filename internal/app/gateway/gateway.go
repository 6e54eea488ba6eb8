// Package gateway declares the external collaborators the onboarding core
// depends on: the document store (organization requests, accounts and the
// durable expiration queue) and the notification sender.
//
// Implementations live under internal/app/store (MongoDB and in-memory) and
// internal/app/system/mailer (SMTP and log-only). Every store returns
// ErrNotFound and ErrPreconditionFailed from this package so callers can
// classify failures with errors.Is; any other error means the store was
// unreachable or rejected the operation.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/chimeo/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when the referenced document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrPreconditionFailed is returned when a conditional update matched
	// the document's identity but not its precondition.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// RequestQuery restricts a request listing. Zero value means all requests.
type RequestQuery struct {
	Status string // "" for all
	Q      string // folded prefix match on organization name
}

// RequestStore persists organization requests.
type RequestStore interface {
	// Create inserts req as a single document, assigning its ID.
	Create(ctx context.Context, req models.OrganizationRequest) (models.OrganizationRequest, error)

	GetByID(ctx context.Context, id primitive.ObjectID) (models.OrganizationRequest, error)

	// List returns matching requests ordered by submission time, newest first.
	List(ctx context.Context, q RequestQuery) ([]models.OrganizationRequest, error)

	// Resolve applies res only if the request is still pending. It returns
	// ErrNotFound when the ID is unknown and ErrPreconditionFailed when the
	// request was already resolved.
	Resolve(ctx context.Context, id primitive.ObjectID, res models.Resolution) (models.OrganizationRequest, error)
}

// AccountStore persists user accounts keyed by normalized email.
type AccountStore interface {
	Get(ctx context.Context, email string) (models.UserAccount, error)

	// UpsertTrial creates or replaces the account's trial fields. CreatedAt
	// is kept when the account already exists.
	UpsertTrial(ctx context.Context, acct models.UserAccount) (models.UserAccount, error)

	// ExpireTrial moves the account to trial_expired only if it is still in
	// premium_trial and its trial ended at or before at. It reports whether
	// this call performed the transition.
	ExpireTrial(ctx context.Context, email string, at time.Time) (bool, error)

	SetTier(ctx context.Context, email, tier, subscriptionStatus string, at time.Time) error
	TouchLogin(ctx context.Context, email string, at time.Time) error

	List(ctx context.Context) ([]models.UserAccount, error)

	// ListLapsedTrials returns premium_trial accounts whose trial ended at or
	// before at.
	ListLapsedTrials(ctx context.Context, at time.Time, limit int64) ([]models.UserAccount, error)
}

// ExpirationQueue is the durable schedule of trial-expiration checks.
type ExpirationQueue interface {
	// Schedule creates or reschedules the check for email.
	Schedule(ctx context.Context, email string, dueAt time.Time) error

	// Due returns scheduled tasks whose due time is at or before at.
	Due(ctx context.Context, at time.Time, limit int64) ([]models.ExpirationTask, error)

	// Scheduled returns every task not yet completed.
	Scheduled(ctx context.Context) ([]models.ExpirationTask, error)

	Complete(ctx context.Context, email string, at time.Time) error

	// Fail records a failed attempt; the task stays scheduled.
	Fail(ctx context.Context, email string, at time.Time, reason string) error
}

// Notification template names.
const (
	TemplateRequestApproved = "request_approved"
	TemplateRequestRejected = "request_rejected"
	TemplateTrialStarted    = "trial_started"
	TemplatePaymentRequired = "payment_required"
)

// Notifier sends a templated email. Delivery is best-effort.
type Notifier interface {
	Send(ctx context.Context, to, template string, data map[string]any) error
}
