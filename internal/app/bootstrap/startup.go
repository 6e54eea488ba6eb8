// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/chimeo/internal/app/features/adminauth"
	auditfeature "github.com/dalemusser/chimeo/internal/app/features/auditlog"
	"github.com/dalemusser/chimeo/internal/app/features/health"
	"github.com/dalemusser/chimeo/internal/app/gateway"
	"github.com/dalemusser/chimeo/internal/app/onboarding"
	accountstore "github.com/dalemusser/chimeo/internal/app/store/accounts"
	adminstore "github.com/dalemusser/chimeo/internal/app/store/admins"
	"github.com/dalemusser/chimeo/internal/app/store/audit"
	expirationstore "github.com/dalemusser/chimeo/internal/app/store/expirations"
	metricsstore "github.com/dalemusser/chimeo/internal/app/store/metrics"
	orgrequeststore "github.com/dalemusser/chimeo/internal/app/store/orgrequests"
	"github.com/dalemusser/chimeo/internal/app/system/auditlog"
	"github.com/dalemusser/chimeo/internal/app/system/mailer"
	"github.com/dalemusser/chimeo/internal/app/system/metrics"
	"github.com/dalemusser/chimeo/internal/app/system/tasks"
	"github.com/dalemusser/chimeo/internal/app/system/timeouts"
	"github.com/dalemusser/chimeo/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// App is the wired service graph shared by the HTTP server and chimeoctl.
type App struct {
	Services  *onboarding.Services
	Metrics   *metrics.Metrics
	Notifier  *mailer.Notifier
	Audit     *auditlog.Logger
	Events    auditfeature.Querier
	Admins    adminauth.Directory
	Scheduler *workers.Scheduler
	Jobs      []tasks.Job

	// Backend and Ping feed the health check. Ping is nil for memory.
	Backend string
	Ping    health.PingFunc
}

// Startup builds the service graph, re-arms trial timers and starts the
// scheduled jobs. It runs after ConnectDB and EnsureSchema.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.app == nil {
		return errors.New("startup: backend not connected")
	}
	a, err := Build(appCfg, deps, logger)
	if err != nil {
		return err
	}
	if err := a.Start(ctx, logger); err != nil {
		return err
	}
	*deps.app = *a
	return nil
}

// Build wires stores, notifier, audit log, metrics and the onboarding
// services for the connected backend. Nothing is started.
func Build(appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*App, error) {
	var (
		requests   gateway.RequestStore
		accounts   gateway.AccountStore
		queue      gateway.ExpirationQueue
		auditStore auditlog.Store
		counts     metrics.CountsFunc
		a          = &App{}
	)

	switch {
	case deps.MongoDatabase != nil:
		db := deps.MongoDatabase
		requests = orgrequeststore.New(db)
		accounts = accountstore.New(db)
		queue = expirationstore.New(db)
		events := audit.New(db)
		auditStore, a.Events = events, events
		a.Admins = adminstore.New(db)
		counts = func(ctx context.Context) metricsstore.Counts {
			return metricsstore.FetchCounts(ctx, db, time.Now().UTC())
		}
		a.Backend = BackendMongo
		if client := deps.MongoClient; client != nil {
			a.Ping = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
		}
	case deps.Memory != nil:
		mem := deps.Memory
		requests = mem.Requests
		accounts = mem.Accounts
		queue = mem.Expirations
		auditStore, a.Events = mem.Audit, mem.Audit
		a.Admins = mem.Admins
		counts = func(ctx context.Context) metricsstore.Counts {
			return mem.Counts(ctx, time.Now().UTC())
		}
		a.Backend = BackendMemory
	default:
		return nil, errors.New("build: no store backend connected")
	}

	a.Metrics = metrics.New()
	if err := a.Metrics.RegisterPipelineGauges(counts, timeouts.Short()); err != nil {
		return nil, fmt.Errorf("register pipeline gauges: %w", err)
	}

	sender := mailer.NewSender(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		Username: appCfg.MailSMTPUser,
		Password: appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)
	a.Notifier = mailer.NewNotifier(sender, appCfg.SiteName, appCfg.BaseURL, a.Metrics, logger)

	a.Audit = auditlog.New(auditStore, logger, auditlog.Config{
		Auth:       appCfg.AuditLogAuth,
		Onboarding: appCfg.AuditLogOnboarding,
	})

	a.Services = onboarding.New(onboarding.Deps{
		Requests:    requests,
		Accounts:    accounts,
		Queue:       queue,
		Notifier:    a.Notifier,
		Audit:       a.Audit,
		Metrics:     a.Metrics,
		Logger:      logger,
		TrialLength: appCfg.TrialLength,
	})

	a.Scheduler = workers.NewScheduler(logger, a.Metrics)
	if appCfg.ExpirationSweepSpec != "" {
		a.Jobs = append(a.Jobs, tasks.ExpirationSweepJob(a.Services.Trials, appCfg.ExpirationSweepSpec, int64(appCfg.SweepBatch), logger))
	}
	if appCfg.ReconcileSpec != "" {
		a.Jobs = append(a.Jobs, tasks.ReconcileJob(a.Services.Console, appCfg.ReconcileSpec, logger))
	}
	for _, job := range a.Jobs {
		if err := a.Scheduler.Add(job); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", job.Name, err)
		}
	}

	return a, nil
}

// Start re-arms expiration timers for trials that outlived the last process
// and starts the scheduler.
func (a *App) Start(ctx context.Context, logger *zap.Logger) error {
	armed, err := a.Services.Trials.Resume(ctx)
	if err != nil {
		logger.Error("resume trial timers failed", zap.Error(err))
		return err
	}
	logger.Info("trial timers resumed", zap.Int("armed", armed))

	a.Scheduler.Start()
	logger.Info("scheduler started", zap.Int("jobs", len(a.Jobs)))
	return nil
}

// Stop halts scheduled jobs and trial timers, then waits for queued
// notifications to drain.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
	}
	if a.Services != nil {
		a.Services.Trials.Stop()
	}
	if a.Notifier != nil {
		if err := a.Notifier.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("notifier: %w", err))
		}
	}
	return errors.Join(errs...)
}
