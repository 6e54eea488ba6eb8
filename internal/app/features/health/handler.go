package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/chimeo/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// PingFunc checks the backing store. Nil means there is nothing to check
// (the in-memory backend).
type PingFunc func(ctx context.Context) error

// Handler holds dependencies needed for health checks.
type Handler struct {
	Ping    PingFunc
	Backend string
	Log     *zap.Logger
}

// NewHandler constructs a health Handler.
func NewHandler(ping PingFunc, backend string, logger *zap.Logger) *Handler {
	return &Handler{Ping: ping, Backend: backend, Log: logger}
}

type healthResponse struct {
	Status   string `json:"status"`
	Backend  string `json:"backend"`
	Database string `json:"database"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "backend":"mongo", "database":"connected" }
//
// On store failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{Status: "ok", Backend: h.Backend, Database: "connected"}
	if h.Ping == nil {
		resp.Database = "in-memory"
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	if err := h.Ping(ctx); err != nil {
		h.Log.Error("health-check: ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}
