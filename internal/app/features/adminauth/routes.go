// internal/app/features/adminauth/routes.go
package adminauth

import "github.com/go-chi/chi/v5"

// Routes is mounted at /admin. These routes are public; the session is
// loaded by the parent router so logout and session can read it.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.HandleLogin)
	r.Post("/logout", h.HandleLogout)
	r.Get("/session", h.ServeSession)
	r.Get("/auth/google", h.ServeGoogle)
	r.Get("/auth/google/callback", h.ServeGoogleCallback)
	return r
}
