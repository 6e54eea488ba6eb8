// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	adminauthfeature "github.com/dalemusser/chimeo/internal/app/features/adminauth"
	adminrequestsfeature "github.com/dalemusser/chimeo/internal/app/features/adminrequests"
	entitlementsfeature "github.com/dalemusser/chimeo/internal/app/features/entitlements"
	auditlogfeature "github.com/dalemusser/chimeo/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/chimeo/internal/app/features/errors"
	healthfeature "github.com/dalemusser/chimeo/internal/app/features/health"
	orgrequestsfeature "github.com/dalemusser/chimeo/internal/app/features/orgrequests"
	"github.com/dalemusser/chimeo/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed, so deps carries the wired service graph.
//
// Public surface:
//   - /health, /metrics
//   - /org-requests            request intake
//   - /api/entitlements        service-token API for the Chimeo app
//
// Review console (session cookie, admin role):
//   - /admin                   login, logout, session, Google sign-in
//   - /admin/requests          list, stats, detail, approve, reject
//   - /admin/accounts          account view and tier changes
//   - /admin/reconcile         approval repair
//   - /admin/audit             audit event history
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.app == nil || deps.app.Services == nil {
		return nil, errors.New("build handler: startup has not run")
	}
	a := deps.app

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// Loads the admin SessionUser into context when the cookie is valid.
	r.Use(sessionMgr.LoadSessionUser)

	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	healthHandler := healthfeature.NewHandler(a.Ping, a.Backend, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", a.Metrics.Handler())

	// Intake
	orgReqHandler := orgrequestsfeature.NewHandler(a.Services.Workflow, errLog, logger)
	r.Mount("/org-requests", orgrequestsfeature.Routes(orgReqHandler))

	// Review console
	adminAuthHandler := adminauthfeature.NewHandler(a.Admins, sessionMgr, errLog, a.Audit,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
	r.Mount("/admin", adminauthfeature.Routes(adminAuthHandler))

	adminReqHandler := adminrequestsfeature.NewHandler(a.Services.Console, a.Services.Trials, errLog, logger)
	r.Mount("/admin/requests", adminrequestsfeature.Routes(adminReqHandler, sessionMgr))
	r.Mount("/admin/accounts", adminrequestsfeature.AccountRoutes(adminReqHandler, sessionMgr))
	r.Mount("/admin/reconcile", adminrequestsfeature.ReconcileRoutes(adminReqHandler, sessionMgr))

	auditHandler := auditlogfeature.NewHandler(a.Events, errLog, logger)
	r.Mount("/admin/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	// Machine-to-machine
	entHandler := entitlementsfeature.NewHandler(a.Services.Trials, errLog, logger)
	r.Mount("/api/entitlements", entitlementsfeature.Routes(entHandler, appCfg.ServiceToken))

	logger.Info("routes ready",
		zap.String("backend", a.Backend),
		zap.Bool("google_sign_in", adminAuthHandler.GoogleConfigured()),
		zap.Bool("entitlements_api", appCfg.ServiceToken != ""))
	return r, nil
}
