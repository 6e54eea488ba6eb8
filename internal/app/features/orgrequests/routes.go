// internal/app/features/orgrequests/routes.go
package orgrequests

import (
	"github.com/dalemusser/chimeo/internal/app/system/limits"
	"github.com/dalemusser/chimeo/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes is public; submissions are rate limited per client IP.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(ratelimit.Middleware(ratelimit.New(limits.SubmissionsPerIP, limits.SubmissionWindow))).
		Post("/", h.HandleSubmit)
	return r
}
