package onboarding

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/chimeo/internal/app/gateway"
	"github.com/dalemusser/chimeo/internal/app/system/inputval"
	"github.com/dalemusser/chimeo/internal/app/system/mailer"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Workflow moves organization requests from submission to resolution.
type Workflow struct {
	deps   Deps
	trials *TrialManager
}

// Submit validates f and stores it as a pending request, returning its id.
func (w *Workflow) Submit(ctx context.Context, f Form) (string, error) {
	f = f.clean()
	if res := inputval.Check(f); !res.OK() {
		return "", &ValidationError{Missing: res.Missing, Invalid: res.Invalid}
	}

	req, err := w.deps.Requests.Create(ctx, f.request(w.deps.Now()))
	if err != nil {
		return "", persistErr("submit request", err)
	}
	id := req.ID.Hex()

	w.deps.Metrics.RequestSubmitted()
	w.deps.Audit.RequestSubmitted(ctx, id, req.OrgName, req.ContactEmail)
	w.deps.Logger.Info("organization request submitted",
		zap.String("request_id", id),
		zap.String("org_name", req.OrgName))
	return id, nil
}

// Approve resolves a pending request as approved by reviewer and provisions
// the trial account. When provisioning fails the approval stands and a
// *ProvisioningError is returned with the approved request.
func (w *Workflow) Approve(ctx context.Context, id, reviewer string) (models.OrganizationRequest, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return models.OrganizationRequest{}, ErrUnauthenticated
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.OrganizationRequest{}, ErrNotFound
	}

	now := w.deps.Now()
	req, err := w.deps.Requests.Resolve(ctx, oid, models.Resolution{
		Status:     models.RequestApproved,
		At:         now,
		By:         reviewer,
		Tier:       models.TierPremiumTrial,
		TrialStart: now,
		TrialEnd:   now.Add(w.deps.TrialLength),
	})
	if err != nil {
		return models.OrganizationRequest{}, w.resolveErr("approve request", err)
	}

	w.deps.Metrics.RequestResolved(models.RequestApproved)
	w.deps.Audit.RequestApproved(ctx, id, req.ContactEmail, reviewer)
	w.deps.Logger.Info("organization request approved",
		zap.String("request_id", id),
		zap.String("reviewer", reviewer))

	_, perr := w.trials.provision(ctx, req.ContactEmail, req.OrgName, req.OrgType, now)

	w.deps.notify(ctx, req.NotifyEmail(), gateway.TemplateRequestApproved, map[string]any{
		mailer.KeyOrgName:     req.OrgName,
		mailer.KeyContactName: req.ContactName,
		mailer.KeyTrialEnd:    req.TrialEndDate,
	})

	if perr != nil {
		w.deps.Audit.TrialProvisionFailed(ctx, id, req.ContactEmail, perr)
		w.deps.Logger.Error("trial provisioning failed after approval",
			zap.String("request_id", id),
			zap.String("email", req.ContactEmail),
			zap.Error(perr))
		return req, &ProvisioningError{RequestID: id, Email: req.ContactEmail, Err: perr}
	}
	return req, nil
}

// Reject resolves a pending request as rejected. An empty reason is stored
// as models.DefaultRejectionReason.
func (w *Workflow) Reject(ctx context.Context, id, reviewer, reason string) (models.OrganizationRequest, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return models.OrganizationRequest{}, ErrUnauthenticated
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.OrganizationRequest{}, ErrNotFound
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = models.DefaultRejectionReason
	}

	req, err := w.deps.Requests.Resolve(ctx, oid, models.Resolution{
		Status: models.RequestRejected,
		At:     w.deps.Now(),
		By:     reviewer,
		Reason: reason,
	})
	if err != nil {
		return models.OrganizationRequest{}, w.resolveErr("reject request", err)
	}

	w.deps.Metrics.RequestResolved(models.RequestRejected)
	w.deps.Audit.RequestRejected(ctx, id, reviewer, reason)
	w.deps.Logger.Info("organization request rejected",
		zap.String("request_id", id),
		zap.String("reviewer", reviewer))

	w.deps.notify(ctx, req.NotifyEmail(), gateway.TemplateRequestRejected, map[string]any{
		mailer.KeyOrgName:     req.OrgName,
		mailer.KeyContactName: req.ContactName,
		mailer.KeyReason:      reason,
	})
	return req, nil
}

func (w *Workflow) resolveErr(op string, err error) error {
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, gateway.ErrPreconditionFailed):
		w.deps.Metrics.TransitionConflict()
		return ErrInvalidState
	default:
		return persistErr(op, err)
	}
}
