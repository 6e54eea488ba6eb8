// internal/app/features/adminrequests/handler.go
package adminrequests

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	uierrors "github.com/dalemusser/chimeo/internal/app/features/errors"
	"github.com/dalemusser/chimeo/internal/app/onboarding"
	"github.com/dalemusser/chimeo/internal/app/system/auth"
	"github.com/dalemusser/chimeo/internal/app/system/formutil"
	"github.com/dalemusser/chimeo/internal/app/system/limits"
	"github.com/dalemusser/chimeo/internal/app/system/timeouts"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the review console: request listing, detail, approve and
// reject, account lookups and reconciliation.
type Handler struct {
	Console *onboarding.Console
	Trials  *onboarding.TrialManager
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger
}

func NewHandler(console *onboarding.Console, trials *onboarding.TrialManager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Console: console, Trials: trials, ErrLog: errLog, Log: logger}
}

type listResponse struct {
	Status   string                       `json:"status"`
	Q        string                       `json:"q,omitempty"`
	Requests []models.OrganizationRequest `json:"requests"`
	Stats    onboarding.Stats             `json:"stats"`
}

type actionResponse struct {
	Request models.OrganizationRequest `json:"request"`
	Stats   onboarding.Stats           `json:"stats"`
	// Stale is set when the console could not reload after the action.
	Stale bool `json:"stale,omitempty"`
	// ReconciliationRequired is set when the approval stands but the trial
	// account was not provisioned.
	ReconciliationRequired bool   `json:"reconciliationRequired,omitempty"`
	Warning                string `json:"warning,omitempty"`
}

// reviewer is the signed-in admin's email, or "" (which the workflow rejects).
func reviewer(r *http.Request) string {
	if u, ok := auth.CurrentUser(r); ok {
		return u.Email
	}
	return ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /admin/requests?status=&q=                                              |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	status := query.Get(r, "status")
	if status == "" {
		status = onboarding.StatusAll
	}
	q := query.Get(r, "q")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	reqs, stats, err := h.Console.List(ctx, onboarding.Filter{Status: status, Q: q})
	if err != nil {
		h.ErrLog.LogOnboarding(w, r, "list org requests", err)
		return
	}
	if reqs == nil {
		reqs = []models.OrganizationRequest{}
	}
	uierrors.WriteJSON(w, http.StatusOK, listResponse{Status: strings.ToLower(status), Q: q, Requests: reqs, Stats: stats})
}

// ServeStats handles GET /admin/requests/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	stats, err := h.Console.Stats(ctx)
	if err != nil {
		h.ErrLog.LogOnboarding(w, r, "org request stats", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, stats)
}

// ServeDetail handles GET /admin/requests/{id}.
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	d, err := h.Console.ViewDetail(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogOnboarding(w, r, "view org request", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, d)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /admin/requests/{id}/approve                                           |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Console.Approve(ctx, id, reviewer(r))
	var perr *onboarding.ProvisioningError
	switch {
	case err == nil:
		uierrors.WriteJSON(w, http.StatusOK, actionResponse{Request: res.Request, Stats: res.Snapshot.Stats, Stale: res.Stale})
	case errors.As(err, &perr):
		h.Log.Warn("approved without trial account",
			zap.String("request_id", id),
			zap.String("email", perr.Email),
			zap.Error(perr.Err))
		uierrors.WriteJSON(w, http.StatusAccepted, actionResponse{
			Request:                res.Request,
			Stats:                  res.Snapshot.Stats,
			Stale:                  res.Stale,
			ReconciliationRequired: true,
			Warning:                "The request was approved but the trial account could not be created. It will be retried by reconciliation.",
		})
	default:
		h.ErrLog.LogOnboarding(w, r, "approve org request", err)
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /admin/requests/{id}/reject                                            |
*─────────────────────────────────────────────────────────────────────────────*/

type rejectForm struct {
	Reason string `json:"reason"`
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	var f rejectForm
	if err := formutil.Decode(w, r, &f, limits.MaxAdminBody); err != nil && !errors.Is(err, io.EOF) {
		h.ErrLog.LogBadRequest(w, r, "decode reject", err, "Malformed request body.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Console.Reject(ctx, chi.URLParam(r, "id"), reviewer(r), f.Reason)
	if err != nil {
		h.ErrLog.LogOnboarding(w, r, "reject org request", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, actionResponse{Request: res.Request, Stats: res.Snapshot.Stats, Stale: res.Stale})
}

// HandleReconcile handles POST /admin/reconcile.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Console.Reconcile(ctx)
	if err != nil {
		h.ErrLog.LogOnboarding(w, r, "reconcile", err)
		return
	}
	if res.Repaired == nil {
		res.Repaired = []string{}
	}
	if res.Failed == nil {
		res.Failed = []string{}
	}
	uierrors.WriteJSON(w, http.StatusOK, res)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Accounts                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

type accountResponse struct {
	Account      models.UserAccount  `json:"account"`
	Entitlements models.Entitlements `json:"entitlements"`
}

// ServeAccount handles GET /admin/accounts/{email}. The trial is
// re-validated before the account is returned.
func (h *Handler) ServeAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	acct, err := h.Trials.Account(ctx, emailParam(r))
	if err != nil {
		h.ErrLog.LogOnboarding(w, r, "load account", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, accountResponse{Account: acct, Entitlements: models.EntitlementsFor(acct)})
}

// emailParam is the {email} path segment, which clients may percent-encode.
func emailParam(r *http.Request) string {
	raw := chi.URLParam(r, "email")
	if s, err := url.PathUnescape(raw); err == nil {
		return s
	}
	return raw
}

type tierForm struct {
	Tier string `json:"tier"`
}

// HandleTier handles POST /admin/accounts/{email}/tier.
func (h *Handler) HandleTier(w http.ResponseWriter, r *http.Request) {
	var f tierForm
	if err := formutil.Decode(w, r, &f, limits.MaxAdminBody); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode tier", err, "Malformed request body.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	acct, err := h.Trials.ChangeTier(ctx, emailParam(r), strings.TrimSpace(f.Tier), reviewer(r))
	if err != nil {
		h.ErrLog.LogOnboarding(w, r, "change tier", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, accountResponse{Account: acct, Entitlements: models.EntitlementsFor(acct)})
}
