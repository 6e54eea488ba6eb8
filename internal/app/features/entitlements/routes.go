// internal/app/features/entitlements/routes.go
package entitlements

import (
	"github.com/dalemusser/chimeo/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /api/entitlements behind the service token.
func Routes(h *Handler, serviceToken string) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireServiceToken(serviceToken))
	r.Get("/{email}", h.ServeEntitlements)
	r.Post("/{email}/login", h.HandleLogin)
	return r
}
