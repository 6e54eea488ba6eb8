// internal/app/system/workers/scheduler.go
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/chimeo/internal/app/system/metrics"
	"github.com/dalemusser/chimeo/internal/app/system/tasks"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs tasks.Job values on their cron specs. A job that is still
// running when its next tick arrives skips that tick.
type Scheduler struct {
	cron    *cron.Cron
	log     *zap.Logger
	metrics *metrics.Metrics
	jobs    []tasks.Job
}

// NewScheduler creates a scheduler in UTC. Specs may include a leading
// seconds field.
func NewScheduler(logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log:     logger,
		metrics: m,
	}
}

// Add registers job. Jobs with an empty spec are skipped (disabled).
func (s *Scheduler) Add(job tasks.Job) error {
	if job.Spec == "" {
		s.log.Info("scheduled job disabled", zap.String("job", job.Name))
		return nil
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.RunNow(context.Background(), job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// RunNow runs job once in the calling goroutine with the job's timeout.
func (s *Scheduler) RunNow(ctx context.Context, job tasks.Job) error {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Run(ctx)
	took := time.Since(start)
	s.metrics.ObserveJob(job.Name, took)

	if err != nil {
		s.log.Error("scheduled job failed",
			zap.String("job", job.Name),
			zap.Duration("took", took),
			zap.Error(err))
		return err
	}
	s.log.Debug("scheduled job finished",
		zap.String("job", job.Name),
		zap.Duration("took", took))
	return nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.Name+" "+j.Spec)
	}
	s.log.Info("job scheduler started", zap.Strings("jobs", names))
}

// Stop prevents new runs and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("job scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
