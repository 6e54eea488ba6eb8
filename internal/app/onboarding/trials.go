package onboarding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/chimeo/internal/app/gateway"
	"github.com/dalemusser/chimeo/internal/app/system/inputval"
	"github.com/dalemusser/chimeo/internal/app/system/mailer"
	"github.com/dalemusser/chimeo/internal/app/system/timeouts"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"go.uber.org/zap"
)

// TrialManager provisions trials and enforces their expiration.
//
// Expiration is enforced three ways: a durable task row per account that
// the scheduled sweep works through, an in-process timer per account that
// fires at the trial end, and re-validation whenever an account is read
// through Account, Entitlements or RecordLogin. Only the first and last are
// required for correctness; timers are lost on restart until Resume runs.
type TrialManager struct {
	deps Deps

	mu      sync.Mutex
	timers  map[string]*armedTimer
	stopped bool
}

type armedTimer struct {
	t *time.Timer
}

func newTrialManager(d Deps) *TrialManager {
	return &TrialManager{deps: d, timers: map[string]*armedTimer{}}
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Checked int
	Expired int
	Failed  int
}

// ProvisionTrial creates or replaces the account for email with a fresh
// premium trial starting now.
func (m *TrialManager) ProvisionTrial(ctx context.Context, email, orgName, orgType string) (models.UserAccount, error) {
	return m.provision(ctx, email, orgName, orgType, m.deps.Now())
}

func (m *TrialManager) provision(ctx context.Context, email, orgName, orgType string, start time.Time) (models.UserAccount, error) {
	email = models.NormalizeEmail(email)
	if !inputval.IsValidEmail(email) {
		return models.UserAccount{}, &ValidationError{Invalid: []string{"email"}}
	}

	now := m.deps.Now()
	end := start.Add(m.deps.TrialLength)
	acct, err := m.deps.Accounts.UpsertTrial(ctx, models.UserAccount{
		Email:              email,
		OrganizationName:   orgName,
		OrganizationType:   orgType,
		CurrentTier:        models.TierPremiumTrial,
		SubscriptionStatus: models.SubscriptionTrial,
		TrialStartDate:     &start,
		TrialEndDate:       &end,
		CreatedAt:          now,
		LastLoginAt:        now,
		UpdatedAt:          now,
	})
	m.deps.Metrics.TrialProvisioned(err)
	if err != nil {
		return models.UserAccount{}, persistErr("provision trial", err)
	}

	if err := m.deps.Queue.Schedule(ctx, email, end); err != nil {
		// The lapsed-trial sweep and access-time checks still cover this account.
		m.deps.Logger.Warn("could not schedule expiration check",
			zap.String("email", email),
			zap.Error(err))
	}
	m.deps.Audit.TrialProvisioned(ctx, email, end)
	m.deps.Logger.Info("trial provisioned",
		zap.String("email", email),
		zap.Time("trial_end", end))

	if !now.Before(end) {
		// Provisioned late (reconciliation of an old approval): settle now.
		if _, err := m.CheckExpiration(ctx, email); err != nil {
			m.deps.Logger.Warn("expiration check after late provisioning failed",
				zap.String("email", email),
				zap.Error(err))
		}
		acct, err := m.deps.Accounts.Get(ctx, email)
		if err != nil {
			return models.UserAccount{}, persistErr("load account", err)
		}
		return acct, nil
	}

	m.arm(email, end)
	m.deps.notify(ctx, email, gateway.TemplateTrialStarted, map[string]any{
		mailer.KeyOrgName:  orgName,
		mailer.KeyTrialEnd: end,
	})
	return acct, nil
}

// CheckExpiration moves a lapsed premium_trial account to trial_expired and
// reports whether this call made the transition. It is safe to call any
// number of times: accounts that are missing, not in a trial, or still
// inside the trial are left alone, and their stale expiration task is
// completed.
func (m *TrialManager) CheckExpiration(ctx context.Context, email string) (bool, error) {
	return m.check(ctx, email, true)
}

// check is CheckExpiration; read paths pass settleStale=false so a plain
// account read on a paid tier does not write.
func (m *TrialManager) check(ctx context.Context, email string, settleStale bool) (bool, error) {
	email = models.NormalizeEmail(email)
	acct, err := m.deps.Accounts.Get(ctx, email)
	if errors.Is(err, gateway.ErrNotFound) {
		if settleStale {
			m.settle(ctx, email)
		}
		return false, nil
	}
	if err != nil {
		return false, persistErr("check expiration", err)
	}
	if acct.CurrentTier != models.TierPremiumTrial {
		if settleStale {
			m.settle(ctx, email)
		}
		return false, nil
	}

	now := m.deps.Now()
	if !acct.TrialLapsed(now) {
		return false, nil
	}

	expired, err := m.deps.Accounts.ExpireTrial(ctx, email, now)
	if err != nil {
		return false, persistErr("expire trial", err)
	}
	if !expired {
		// Another caller got there first or the tier changed meanwhile.
		return false, nil
	}
	m.settle(ctx, email)

	m.deps.Metrics.TrialExpired()
	m.deps.Audit.TrialExpired(ctx, email)
	m.deps.Logger.Info("trial expired", zap.String("email", email))
	m.deps.notify(ctx, email, gateway.TemplatePaymentRequired, map[string]any{
		mailer.KeyOrgName:  acct.OrganizationName,
		mailer.KeyTrialEnd: acct.TrialEndDate,
	})
	return true, nil
}

// Account returns the account after re-validating its trial.
func (m *TrialManager) Account(ctx context.Context, email string) (models.UserAccount, error) {
	if _, err := m.check(ctx, email, false); err != nil {
		return models.UserAccount{}, err
	}
	acct, err := m.deps.Accounts.Get(ctx, email)
	if errors.Is(err, gateway.ErrNotFound) {
		return models.UserAccount{}, ErrNotFound
	}
	if err != nil {
		return models.UserAccount{}, persistErr("load account", err)
	}
	return acct, nil
}

// Entitlements returns the feature gate for email's current tier.
func (m *TrialManager) Entitlements(ctx context.Context, email string) (models.Entitlements, error) {
	acct, err := m.Account(ctx, email)
	if err != nil {
		return models.Entitlements{}, err
	}
	return models.EntitlementsFor(acct), nil
}

// RecordLogin re-validates the trial and stamps lastLoginAt.
func (m *TrialManager) RecordLogin(ctx context.Context, email string) (models.UserAccount, error) {
	if _, err := m.check(ctx, email, false); err != nil {
		return models.UserAccount{}, err
	}
	err := m.deps.Accounts.TouchLogin(ctx, email, m.deps.Now())
	if errors.Is(err, gateway.ErrNotFound) {
		return models.UserAccount{}, ErrNotFound
	}
	if err != nil {
		return models.UserAccount{}, persistErr("record login", err)
	}
	return m.Account(ctx, email)
}

// ChangeTier moves an account to a paid tier or back to none on behalf of
// actor. Any pending expiration check is dropped.
func (m *TrialManager) ChangeTier(ctx context.Context, email, tier, actor string) (models.UserAccount, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return models.UserAccount{}, ErrUnauthenticated
	}
	var status string
	switch tier {
	case models.TierPro, models.TierPremium:
		status = models.SubscriptionActive
	case models.TierNone:
		status = models.SubscriptionNone
	default:
		return models.UserAccount{}, &ValidationError{Invalid: []string{"tier"}}
	}

	email = models.NormalizeEmail(email)
	before, err := m.deps.Accounts.Get(ctx, email)
	if errors.Is(err, gateway.ErrNotFound) {
		return models.UserAccount{}, ErrNotFound
	}
	if err != nil {
		return models.UserAccount{}, persistErr("load account", err)
	}

	err = m.deps.Accounts.SetTier(ctx, email, tier, status, m.deps.Now())
	if errors.Is(err, gateway.ErrNotFound) {
		return models.UserAccount{}, ErrNotFound
	}
	if err != nil {
		return models.UserAccount{}, persistErr("change tier", err)
	}
	m.settle(ctx, email)

	m.deps.Audit.TierChanged(ctx, email, actor, before.CurrentTier, tier)
	m.deps.Logger.Info("tier changed",
		zap.String("email", email),
		zap.String("from", before.CurrentTier),
		zap.String("to", tier),
		zap.String("actor", actor))

	acct, err := m.deps.Accounts.Get(ctx, email)
	if err != nil {
		return models.UserAccount{}, persistErr("load account", err)
	}
	return acct, nil
}

// Sweep checks every due expiration task and every account whose trial has
// lapsed, up to limit of each (0 means no limit). A failure for one account
// is recorded on its task and does not stop the sweep.
func (m *TrialManager) Sweep(ctx context.Context, limit int64) (SweepResult, error) {
	var res SweepResult
	now := m.deps.Now()

	tasks, err := m.deps.Queue.Due(ctx, now, limit)
	if err != nil {
		return res, persistErr("load due expirations", err)
	}
	seen := make(map[string]bool, len(tasks))
	emails := make([]string, 0, len(tasks))
	for _, t := range tasks {
		seen[t.Email] = true
		emails = append(emails, t.Email)
	}

	lapsed, err := m.deps.Accounts.ListLapsedTrials(ctx, now, limit)
	if err != nil {
		m.deps.Logger.Warn("could not list lapsed trials", zap.Error(err))
	}
	for _, a := range lapsed {
		if !seen[a.Email] {
			seen[a.Email] = true
			emails = append(emails, a.Email)
		}
	}

	for _, email := range emails {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++
		expired, err := m.CheckExpiration(ctx, email)
		if err != nil {
			res.Failed++
			m.deps.Logger.Warn("expiration check failed",
				zap.String("email", email),
				zap.Error(err))
			if ferr := m.deps.Queue.Fail(ctx, email, m.deps.Now(), err.Error()); ferr != nil {
				m.deps.Logger.Warn("could not record failed expiration check",
					zap.String("email", email),
					zap.Error(ferr))
			}
			continue
		}
		if expired {
			res.Expired++
		}
	}
	return res, nil
}

// Resume arms a timer for every scheduled expiration task. Call it once at
// startup; it returns the number of timers armed.
func (m *TrialManager) Resume(ctx context.Context) (int, error) {
	tasks, err := m.deps.Queue.Scheduled(ctx)
	if err != nil {
		return 0, persistErr("load scheduled expirations", err)
	}
	for _, t := range tasks {
		m.arm(t.Email, t.DueAt)
	}
	return len(tasks), nil
}

// Stop cancels every armed timer. Later provisioning arms nothing.
func (m *TrialManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	for email, a := range m.timers {
		a.t.Stop()
		delete(m.timers, email)
	}
}

// Armed reports whether a timer is pending for email.
func (m *TrialManager) Armed(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[models.NormalizeEmail(email)]
	return ok
}

func (m *TrialManager) arm(email string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if old, ok := m.timers[email]; ok {
		old.t.Stop()
	}
	d := at.Sub(m.deps.Now())
	if d < 0 {
		d = 0
	}
	a := &armedTimer{}
	a.t = time.AfterFunc(d, func() { m.fire(email, a) })
	m.timers[email] = a
}

func (m *TrialManager) fire(email string, a *armedTimer) {
	m.mu.Lock()
	if cur, ok := m.timers[email]; !ok || cur != a {
		m.mu.Unlock()
		return
	}
	delete(m.timers, email)
	m.mu.Unlock()

	ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Medium(), m.deps.Logger, "trial expiration timer")
	defer cancel()
	if _, err := m.CheckExpiration(ctx, email); err != nil {
		m.deps.Logger.Warn("timed expiration check failed; sweep will retry",
			zap.String("email", email),
			zap.Error(err))
		_ = m.deps.Queue.Fail(ctx, email, m.deps.Now(), err.Error())
	}
}

// settle drops the timer and completes the durable task for email.
func (m *TrialManager) settle(ctx context.Context, email string) {
	m.mu.Lock()
	if a, ok := m.timers[email]; ok {
		a.t.Stop()
		delete(m.timers, email)
	}
	m.mu.Unlock()

	if err := m.deps.Queue.Complete(ctx, email, m.deps.Now()); err != nil {
		m.deps.Logger.Warn("could not complete expiration task",
			zap.String("email", email),
			zap.Error(err))
	}
}
