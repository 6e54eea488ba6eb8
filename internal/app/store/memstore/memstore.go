// Package memstore is an in-process implementation of the gateway stores.
// It backs store_backend=memory (local development without MongoDB) and the
// onboarding tests. Conditional updates hold the same guarantees as the
// MongoDB stores: each one runs under a single lock.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/chimeo/internal/app/gateway"
	"github.com/dalemusser/chimeo/internal/app/store/audit"
	metricsstore "github.com/dalemusser/chimeo/internal/app/store/metrics"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Backend bundles one of each store over shared state.
type Backend struct {
	Requests    *Requests
	Accounts    *Accounts
	Expirations *Expirations
	Audit       *AuditEvents
	Admins      *Admins
}

func New() *Backend {
	return &Backend{
		Requests:    &Requests{byID: map[primitive.ObjectID]models.OrganizationRequest{}},
		Accounts:    &Accounts{byEmail: map[string]models.UserAccount{}},
		Expirations: &Expirations{byEmail: map[string]models.ExpirationTask{}},
		Audit:       &AuditEvents{},
		Admins:      &Admins{byEmail: map[string]models.Admin{}},
	}
}

// Counts mirrors metricsstore.FetchCounts.
func (b *Backend) Counts(_ context.Context, now time.Time) metricsstore.Counts {
	var out metricsstore.Counts

	b.Requests.mu.RLock()
	for _, r := range b.Requests.byID {
		switch r.Status {
		case models.RequestPending:
			out.Pending++
		case models.RequestApproved:
			out.Approved++
		case models.RequestRejected:
			out.Rejected++
		}
	}
	b.Requests.mu.RUnlock()

	b.Accounts.mu.RLock()
	for _, a := range b.Accounts.byEmail {
		if a.InTrial(now) {
			out.Trials++
		}
		if a.CurrentTier == models.TierTrialExpired {
			out.TrialsExpired++
		}
	}
	b.Accounts.mu.RUnlock()

	b.Expirations.mu.RLock()
	for _, t := range b.Expirations.byEmail {
		if t.Status == models.TaskScheduled && !t.DueAt.After(now) {
			out.DueChecks++
		}
	}
	b.Expirations.mu.RUnlock()

	return out
}

/*─────────────────────────────────────────────────────────────────────────────*
| Requests                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

type Requests struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.OrganizationRequest

	// FailWrites makes every write return an error. Tests use it to
	// simulate an unavailable store.
	FailWrites bool
}

var _ gateway.RequestStore = (*Requests)(nil)

func (s *Requests) Create(_ context.Context, req models.OrganizationRequest) (models.OrganizationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return models.OrganizationRequest{}, errUnavailable
	}
	if req.ID.IsZero() {
		req.ID = primitive.NewObjectID()
	}
	if _, exists := s.byID[req.ID]; exists {
		return models.OrganizationRequest{}, fmt.Errorf("duplicate request id %s", req.ID.Hex())
	}
	req.OrgNameCI = text.Fold(req.OrgName)
	s.byID[req.ID] = req
	return req, nil
}

func (s *Requests) GetByID(_ context.Context, id primitive.ObjectID) (models.OrganizationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.byID[id]
	if !ok {
		return models.OrganizationRequest{}, gateway.ErrNotFound
	}
	return req, nil
}

func (s *Requests) List(_ context.Context, q gateway.RequestQuery) ([]models.OrganizationRequest, error) {
	prefix := text.Fold(strings.TrimSpace(q.Q))

	s.mu.RLock()
	out := make([]models.OrganizationRequest, 0, len(s.byID))
	for _, r := range s.byID {
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		if prefix != "" && !strings.HasPrefix(r.OrgNameCI, prefix) {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out, nil
}

func (s *Requests) Resolve(_ context.Context, id primitive.ObjectID, res models.Resolution) (models.OrganizationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return models.OrganizationRequest{}, errUnavailable
	}
	req, ok := s.byID[id]
	if !ok {
		return models.OrganizationRequest{}, gateway.ErrNotFound
	}
	if req.Status != models.RequestPending {
		return models.OrganizationRequest{}, gateway.ErrPreconditionFailed
	}

	at := res.At
	switch res.Status {
	case models.RequestApproved:
		start, end := res.TrialStart, res.TrialEnd
		req.ApprovedAt, req.ApprovedBy = &at, res.By
		req.CurrentTier = res.Tier
		req.TrialStartDate, req.TrialEndDate = &start, &end
	case models.RequestRejected:
		req.RejectedAt, req.RejectedBy = &at, res.By
		req.RejectionReason = res.Reason
	default:
		return models.OrganizationRequest{}, fmt.Errorf("cannot resolve request to status %q", res.Status)
	}
	req.Status = res.Status
	s.byID[id] = req
	return req, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Accounts                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

type Accounts struct {
	mu      sync.RWMutex
	byEmail map[string]models.UserAccount

	// FailWrites makes UpsertTrial return an error.
	FailWrites bool
}

var _ gateway.AccountStore = (*Accounts)(nil)

func (s *Accounts) Get(_ context.Context, email string) (models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return models.UserAccount{}, gateway.ErrNotFound
	}
	return a, nil
}

func (s *Accounts) UpsertTrial(_ context.Context, acct models.UserAccount) (models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return models.UserAccount{}, errUnavailable
	}
	acct.Email = models.NormalizeEmail(acct.Email)
	if existing, ok := s.byEmail[acct.Email]; ok {
		acct.CreatedAt = existing.CreatedAt
	}
	acct.TrialExpiredAt = nil
	s.byEmail[acct.Email] = acct
	return acct, nil
}

func (s *Accounts) ExpireTrial(_ context.Context, email string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizeEmail(email)
	a, ok := s.byEmail[key]
	if !ok || !a.TrialLapsed(at) {
		return false, nil
	}
	a.CurrentTier = models.TierTrialExpired
	a.SubscriptionStatus = models.SubscriptionTrialExpired
	a.TrialExpiredAt = &at
	a.UpdatedAt = at
	s.byEmail[key] = a
	return true, nil
}

func (s *Accounts) SetTier(_ context.Context, email, tier, subscriptionStatus string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizeEmail(email)
	a, ok := s.byEmail[key]
	if !ok {
		return gateway.ErrNotFound
	}
	a.CurrentTier, a.SubscriptionStatus, a.UpdatedAt = tier, subscriptionStatus, at
	s.byEmail[key] = a
	return nil
}

func (s *Accounts) TouchLogin(_ context.Context, email string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizeEmail(email)
	a, ok := s.byEmail[key]
	if !ok {
		return gateway.ErrNotFound
	}
	a.LastLoginAt = at
	s.byEmail[key] = a
	return nil
}

func (s *Accounts) List(_ context.Context) ([]models.UserAccount, error) {
	s.mu.RLock()
	out := make([]models.UserAccount, 0, len(s.byEmail))
	for _, a := range s.byEmail {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Accounts) ListLapsedTrials(_ context.Context, at time.Time, limit int64) ([]models.UserAccount, error) {
	s.mu.RLock()
	var out []models.UserAccount
	for _, a := range s.byEmail {
		if a.TrialLapsed(at) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TrialEndDate.Before(*out[j].TrialEndDate) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Put stores acct as-is. Tests use it to seed accounts in any state.
func (s *Accounts) Put(acct models.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct.Email = models.NormalizeEmail(acct.Email)
	s.byEmail[acct.Email] = acct
}

/*─────────────────────────────────────────────────────────────────────────────*
| Expiration queue                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

type Expirations struct {
	mu      sync.RWMutex
	byEmail map[string]models.ExpirationTask
}

var _ gateway.ExpirationQueue = (*Expirations)(nil)

func (s *Expirations) Schedule(_ context.Context, email string, dueAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	key := models.NormalizeEmail(email)
	t, ok := s.byEmail[key]
	if !ok {
		t = models.ExpirationTask{Email: key, CreatedAt: now}
	}
	t.DueAt, t.Status, t.Attempts, t.UpdatedAt = dueAt, models.TaskScheduled, 0, now
	t.LastError, t.CompletedAt = "", nil
	s.byEmail[key] = t
	return nil
}

func (s *Expirations) Due(_ context.Context, at time.Time, limit int64) ([]models.ExpirationTask, error) {
	return s.collect(func(t models.ExpirationTask) bool {
		return t.Status == models.TaskScheduled && !t.DueAt.After(at)
	}, limit), nil
}

func (s *Expirations) Scheduled(_ context.Context) ([]models.ExpirationTask, error) {
	return s.collect(func(t models.ExpirationTask) bool {
		return t.Status == models.TaskScheduled
	}, 0), nil
}

func (s *Expirations) Complete(_ context.Context, email string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizeEmail(email)
	if t, ok := s.byEmail[key]; ok {
		t.Status, t.CompletedAt, t.UpdatedAt = models.TaskDone, &at, at
		s.byEmail[key] = t
	}
	return nil
}

func (s *Expirations) Fail(_ context.Context, email string, at time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizeEmail(email)
	if t, ok := s.byEmail[key]; ok {
		t.Attempts++
		t.LastError, t.UpdatedAt = reason, at
		s.byEmail[key] = t
	}
	return nil
}

// Get returns the task for email, if any.
func (s *Expirations) Get(email string) (models.ExpirationTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byEmail[models.NormalizeEmail(email)]
	return t, ok
}

func (s *Expirations) collect(keep func(models.ExpirationTask) bool, limit int64) []models.ExpirationTask {
	s.mu.RLock()
	var out []models.ExpirationTask
	for _, t := range s.byEmail {
		if keep(t) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

/*─────────────────────────────────────────────────────────────────────────────*
| Audit events                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// AuditEvents keeps audit events in insertion order.
type AuditEvents struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *AuditEvents) Log(_ context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of every logged event.
func (s *AuditEvents) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}

// Query returns events matching f, newest first, paged like audit.Store.
func (s *AuditEvents) Query(_ context.Context, f audit.QueryFilter) ([]audit.Event, error) {
	matched := s.matching(f)
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if f.Offset >= int64(len(matched)) {
		return nil, nil
	}
	matched = matched[f.Offset:]
	if int64(len(matched)) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *AuditEvents) CountByFilter(_ context.Context, f audit.QueryFilter) (int64, error) {
	return int64(len(s.matching(f))), nil
}

func (s *AuditEvents) matching(f audit.QueryFilter) []audit.Event {
	var out []audit.Event
	for _, e := range s.Events() {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// OfType returns logged events with the given event type.
func (s *AuditEvents) OfType(eventType string) []audit.Event {
	var out []audit.Event
	for _, e := range s.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

var errUnavailable = fmt.Errorf("memstore: store unavailable")
