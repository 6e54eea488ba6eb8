// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/chimeo/internal/app/onboarding"
	"go.uber.org/zap"
)

// Job is a unit of scheduled work. Spec is a robfig/cron spec such as
// "@every 5m" or "0 */15 * * * *" (with seconds).
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Sweeper is the part of the trial manager the sweep job needs.
type Sweeper interface {
	Sweep(ctx context.Context, limit int64) (onboarding.SweepResult, error)
}

// Reconciler is the part of the console the reconcile job needs.
type Reconciler interface {
	Reconcile(ctx context.Context) (onboarding.ReconcileResult, error)
}

// ExpirationSweepJob expires lapsed trials that no timer caught, batch
// accounts at a time.
func ExpirationSweepJob(trials Sweeper, spec string, batch int64, logger *zap.Logger) Job {
	return Job{
		Name:    "trial-expiration-sweep",
		Spec:    spec,
		Timeout: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			res, err := trials.Sweep(ctx, batch)
			if err != nil {
				return err
			}
			if res.Checked > 0 {
				logger.Info("expiration sweep finished",
					zap.Int("checked", res.Checked),
					zap.Int("expired", res.Expired),
					zap.Int("failed", res.Failed))
			}
			return nil
		},
	}
}

// ReconcileJob provisions accounts for approved requests that lack one.
func ReconcileJob(console Reconciler, spec string, logger *zap.Logger) Job {
	return Job{
		Name:    "approval-reconcile",
		Spec:    spec,
		Timeout: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			res, err := console.Reconcile(ctx)
			if err != nil {
				return err
			}
			if len(res.Repaired) > 0 || len(res.Failed) > 0 {
				logger.Info("reconcile finished",
					zap.Int("repaired", len(res.Repaired)),
					zap.Int("failed", len(res.Failed)))
			}
			return nil
		},
	}
}
