// internal/app/features/orgrequests/handler.go
package orgrequests

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/chimeo/internal/app/features/errors"
	"github.com/dalemusser/chimeo/internal/app/onboarding"
	"github.com/dalemusser/chimeo/internal/app/system/formutil"
	"github.com/dalemusser/chimeo/internal/app/system/limits"
	"github.com/dalemusser/chimeo/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler accepts public organization requests.
type Handler struct {
	Workflow *onboarding.Workflow
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(workflow *onboarding.Workflow, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Workflow: workflow, ErrLog: errLog, Log: logger}
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// HandleSubmit handles POST /org-requests with a JSON, urlencoded or multipart body.
//
//	201 {"id":"…","status":"pending"}
//	422 {"error":"…","missing":[…],"invalid":[…]}
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var f onboarding.Form
	if err := formutil.Decode(w, r, &f, limits.MaxSubmissionBody); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode org request", err, "Malformed request body.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	id, err := h.Workflow.Submit(ctx, f)
	if err != nil {
		h.ErrLog.LogOnboarding(w, r, "submit org request", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, submitResponse{ID: id, Status: "pending"})
}
