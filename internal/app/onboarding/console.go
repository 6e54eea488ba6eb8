package onboarding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/chimeo/internal/app/gateway"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StatusAll selects every request in a console filter.
const StatusAll = "all"

// Filter narrows the console list. Status is "all" (or empty) or a request
// status; Q is a case-insensitive organization-name prefix.
type Filter struct {
	Status string
	Q      string
}

// Stats are recomputed from the loaded set on every refresh.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	// Trials counts accounts whose premium trial is still running.
	Trials int `json:"trials"`
	// Unprovisioned counts approved requests without an account.
	Unprovisioned int `json:"unprovisioned"`
}

// Snapshot is one consistent load of requests and accounts.
type Snapshot struct {
	Requests []models.OrganizationRequest
	Accounts map[string]models.UserAccount
	Stats    Stats
	LoadedAt time.Time
}

// Detail is a single request prepared for display.
type Detail struct {
	Request       models.OrganizationRequest `json:"request"`
	OrgTypeLabel  string                     `json:"orgTypeLabel"`
	UseCaseLabel  string                     `json:"useCaseLabel"`
	NotifyEmail   string                     `json:"notifyEmail"`
	Account       *models.UserAccount        `json:"account,omitempty"`
	Unprovisioned bool                       `json:"unprovisioned"`
}

// ActionResult pairs the outcome of approve/reject with the snapshot
// reloaded right after it. Stale is set when that reload failed.
type ActionResult struct {
	Request  models.OrganizationRequest
	Snapshot Snapshot
	Stale    bool
}

// ReconcileResult lists the accounts a reconciliation provisioned or failed to.
type ReconcileResult struct {
	Repaired []string `json:"repaired"`
	Failed   []string `json:"failed"`
}

// Console is the admin review surface. It keeps the last snapshot only as
// a cache; every read reloads from the store.
type Console struct {
	deps     Deps
	workflow *Workflow
	trials   *TrialManager

	mu   sync.RWMutex
	last *Snapshot
}

// Refresh loads every request and account and replaces the cached snapshot.
func (c *Console) Refresh(ctx context.Context) (Snapshot, error) {
	var (
		reqs  []models.OrganizationRequest
		accts []models.UserAccount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reqs, err = c.deps.Requests.List(gctx, gateway.RequestQuery{})
		return err
	})
	g.Go(func() error {
		var err error
		accts, err = c.deps.Accounts.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, persistErr("load console", err)
	}

	now := c.deps.Now()
	snap := Snapshot{
		Requests: reqs,
		Accounts: make(map[string]models.UserAccount, len(accts)),
		LoadedAt: now,
	}
	for _, a := range accts {
		snap.Accounts[models.NormalizeEmail(a.Email)] = a
		if a.InTrial(now) {
			snap.Stats.Trials++
		}
	}
	for _, r := range reqs {
		snap.Stats.Total++
		switch r.Status {
		case models.RequestPending:
			snap.Stats.Pending++
		case models.RequestApproved:
			snap.Stats.Approved++
			if _, ok := snap.Accounts[models.NormalizeEmail(r.ContactEmail)]; !ok {
				snap.Stats.Unprovisioned++
			}
		case models.RequestRejected:
			snap.Stats.Rejected++
		}
	}

	c.mu.Lock()
	c.last = &snap
	c.mu.Unlock()
	return snap, nil
}

// Cached returns the last snapshot, if any. It may be stale.
func (c *Console) Cached() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Snapshot{}, false
	}
	return *c.last, true
}

// List returns requests matching f, newest first, along with fresh stats.
func (c *Console) List(ctx context.Context, f Filter) ([]models.OrganizationRequest, Stats, error) {
	status := strings.ToLower(strings.TrimSpace(f.Status))
	if status == StatusAll {
		status = ""
	}
	if status != "" && !models.IsRequestStatus(status) {
		return nil, Stats{}, &ValidationError{Invalid: []string{"status"}}
	}

	snap, err := c.Refresh(ctx)
	if err != nil {
		return nil, Stats{}, err
	}

	prefix := text.Fold(strings.TrimSpace(f.Q))
	out := make([]models.OrganizationRequest, 0, len(snap.Requests))
	for _, r := range snap.Requests {
		if status != "" && r.Status != status {
			continue
		}
		if prefix != "" && !strings.HasPrefix(text.Fold(r.OrgName), prefix) {
			continue
		}
		out = append(out, r)
	}
	return out, snap.Stats, nil
}

// Stats returns counts recomputed from a fresh load.
func (c *Console) Stats(ctx context.Context) (Stats, error) {
	snap, err := c.Refresh(ctx)
	if err != nil {
		return Stats{}, err
	}
	return snap.Stats, nil
}

// ViewDetail loads one request and, when approved, its account.
func (c *Console) ViewDetail(ctx context.Context, id string) (Detail, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Detail{}, ErrNotFound
	}
	req, err := c.deps.Requests.GetByID(ctx, oid)
	if errors.Is(err, gateway.ErrNotFound) {
		return Detail{}, ErrNotFound
	}
	if err != nil {
		return Detail{}, persistErr("load request", err)
	}

	d := Detail{
		Request:      req,
		OrgTypeLabel: models.OrgTypeLabel(req.OrgType),
		UseCaseLabel: models.UseCaseLabel(req.UseCase),
		NotifyEmail:  req.NotifyEmail(),
	}
	if req.Status != models.RequestApproved {
		return d, nil
	}
	acct, err := c.deps.Accounts.Get(ctx, req.ContactEmail)
	switch {
	case err == nil:
		d.Account = &acct
	case errors.Is(err, gateway.ErrNotFound):
		d.Unprovisioned = true
	default:
		return Detail{}, persistErr("load account", err)
	}
	return d, nil
}

// Approve delegates to the workflow and reloads the snapshot. A
// *ProvisioningError is returned together with a valid result.
func (c *Console) Approve(ctx context.Context, id, reviewer string) (ActionResult, error) {
	req, err := c.workflow.Approve(ctx, id, reviewer)
	var perr *ProvisioningError
	if err != nil && !errors.As(err, &perr) {
		return ActionResult{}, err
	}
	return c.afterAction(ctx, req), err
}

// Reject delegates to the workflow and reloads the snapshot.
func (c *Console) Reject(ctx context.Context, id, reviewer, reason string) (ActionResult, error) {
	req, err := c.workflow.Reject(ctx, id, reviewer, reason)
	if err != nil {
		return ActionResult{}, err
	}
	return c.afterAction(ctx, req), nil
}

func (c *Console) afterAction(ctx context.Context, req models.OrganizationRequest) ActionResult {
	snap, err := c.Refresh(ctx)
	if err != nil {
		c.deps.Logger.Warn("console refresh after action failed", zap.Error(err))
		cached, _ := c.Cached()
		return ActionResult{Request: req, Snapshot: cached, Stale: true}
	}
	return ActionResult{Request: req, Snapshot: snap}
}

// Reconcile provisions a trial for every approved request whose account is
// missing, starting it at the request's recorded trial start.
func (c *Console) Reconcile(ctx context.Context) (ReconcileResult, error) {
	snap, err := c.Refresh(ctx)
	if err != nil {
		return ReconcileResult{}, err
	}

	have := make(map[string]bool, len(snap.Accounts))
	for email := range snap.Accounts {
		have[email] = true
	}

	var res ReconcileResult
	for _, r := range snap.Requests {
		if r.Status != models.RequestApproved {
			continue
		}
		email := models.NormalizeEmail(r.ContactEmail)
		if have[email] {
			continue
		}
		start := c.deps.Now()
		switch {
		case r.TrialStartDate != nil:
			start = *r.TrialStartDate
		case r.ApprovedAt != nil:
			start = *r.ApprovedAt
		}

		if _, err := c.trials.provision(ctx, email, r.OrgName, r.OrgType, start); err != nil {
			res.Failed = append(res.Failed, email)
			c.deps.Logger.Warn("reconcile: provisioning failed",
				zap.String("request_id", r.ID.Hex()),
				zap.String("email", email),
				zap.Error(err))
			continue
		}
		// One account per email even if several approved requests share it.
		have[email] = true
		res.Repaired = append(res.Repaired, email)
		c.deps.Audit.TrialRepaired(ctx, r.ID.Hex(), email)
	}

	if len(res.Repaired) > 0 || len(res.Failed) > 0 {
		c.deps.Logger.Info("reconciliation finished",
			zap.Int("repaired", len(res.Repaired)),
			zap.Int("failed", len(res.Failed)))
		if _, err := c.Refresh(ctx); err != nil {
			c.deps.Logger.Warn("console refresh after reconcile failed", zap.Error(err))
		}
	}
	return res, nil
}
