// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"

	uierrors "github.com/dalemusser/chimeo/internal/app/features/errors"
	"github.com/dalemusser/chimeo/internal/app/store/audit"
	"go.uber.org/zap"
)

// Querier reads audit events. *audit.Store and the in-memory backend
// satisfy it.
type Querier interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
}

type Handler struct {
	Events Querier
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs the audit log handler over events.
func NewHandler(events Querier, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Events: events,
		Log:    logger,
		ErrLog: errLog,
	}
}
