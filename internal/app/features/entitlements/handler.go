// internal/app/features/entitlements/handler.go
package entitlements

import (
	"context"
	"net/http"
	"net/url"

	uierrors "github.com/dalemusser/chimeo/internal/app/features/errors"
	"github.com/dalemusser/chimeo/internal/app/onboarding"
	"github.com/dalemusser/chimeo/internal/app/system/timeouts"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler answers the product application's feature-gate questions. Every
// call re-validates the trial, so an expired trial is never reported as
// premium even if the expiration timer has not fired.
type Handler struct {
	Trials *onboarding.TrialManager
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(trials *onboarding.TrialManager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Trials: trials, ErrLog: errLog, Log: logger}
}

func email(r *http.Request) string {
	raw := chi.URLParam(r, "email")
	if s, err := url.PathUnescape(raw); err == nil {
		return s
	}
	return raw
}

// ServeEntitlements handles GET /api/entitlements/{email}.
func (h *Handler) ServeEntitlements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	e, err := h.Trials.Entitlements(ctx, email(r))
	if err != nil {
		h.ErrLog.LogOnboarding(w, r, "entitlements", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, e)
}

type loginResponse struct {
	Account      models.UserAccount  `json:"account"`
	Entitlements models.Entitlements `json:"entitlements"`
}

// HandleLogin handles POST /api/entitlements/{email}/login. The product
// calls it when a user of the account signs in.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	acct, err := h.Trials.RecordLogin(ctx, email(r))
	if err != nil {
		h.ErrLog.LogOnboarding(w, r, "record login", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, loginResponse{Account: acct, Entitlements: models.EntitlementsFor(acct)})
}
