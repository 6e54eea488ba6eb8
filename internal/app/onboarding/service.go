// Package onboarding implements the organization request workflow, the
// trial lifecycle and the admin review console on top of the gateway
// interfaces.
package onboarding

import (
	"context"
	"time"

	"github.com/dalemusser/chimeo/internal/app/gateway"
	"github.com/dalemusser/chimeo/internal/app/system/auditlog"
	"github.com/dalemusser/chimeo/internal/app/system/metrics"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"go.uber.org/zap"
)

// Deps are the collaborators shared by the three services. Notifier, Audit
// and Metrics may be nil.
type Deps struct {
	Requests gateway.RequestStore
	Accounts gateway.AccountStore
	Queue    gateway.ExpirationQueue
	Notifier gateway.Notifier
	Audit    *auditlog.Logger
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	// Now defaults to time.Now in UTC.
	Now func() time.Time
	// TrialLength defaults to models.TrialLength.
	TrialLength time.Duration
}

// Services is the wired onboarding core.
type Services struct {
	Workflow *Workflow
	Trials   *TrialManager
	Console  *Console
}

func New(d Deps) *Services {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.TrialLength <= 0 {
		d.TrialLength = models.TrialLength
	}

	trials := newTrialManager(d)
	workflow := &Workflow{deps: d, trials: trials}
	console := &Console{deps: d, workflow: workflow, trials: trials}
	return &Services{Workflow: workflow, Trials: trials, Console: console}
}

// notify hands a message to the notifier. Failures are logged and never
// returned: a notification can not undo a committed transition.
func (d Deps) notify(ctx context.Context, to, template string, data map[string]any) {
	if d.Notifier == nil || to == "" {
		return
	}
	if err := d.Notifier.Send(ctx, to, template, data); err != nil {
		d.Logger.Warn("notification failed",
			zap.String("template", template),
			zap.String("to", to),
			zap.Error(err))
	}
}
