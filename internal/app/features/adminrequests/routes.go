// internal/app/features/adminrequests/routes.go
package adminrequests

import (
	"github.com/dalemusser/chimeo/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /admin/requests.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(auth.RoleAdmin))

	r.Get("/", h.ServeList)
	r.Get("/stats", h.ServeStats)
	r.Get("/{id}", h.ServeDetail)
	r.Post("/{id}/approve", h.HandleApprove)
	r.Post("/{id}/reject", h.HandleReject)
	return r
}

// AccountRoutes is mounted at /admin/accounts.
func AccountRoutes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(auth.RoleAdmin))

	r.Get("/{email}", h.ServeAccount)
	r.Post("/{email}/tier", h.HandleTier)
	return r
}

// ReconcileRoutes is mounted at /admin/reconcile.
func ReconcileRoutes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(auth.RoleAdmin))
	r.Post("/", h.HandleReconcile)
	return r
}
