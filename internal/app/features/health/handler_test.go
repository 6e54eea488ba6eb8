package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/chimeo/internal/app/features/health"
	"github.com/dalemusser/chimeo/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type response struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Message  string `json:"message"`
}

func serve(t *testing.T, h *health.Handler) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	health.Routes(h).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, resp
}

func TestServe_DatabaseConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := db.Client()
	h := health.NewHandler(func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}, "mongo", zap.NewNop())

	rec, resp := serve(t, h)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if resp.Status != "ok" || resp.Database != "connected" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestServe_PingFails(t *testing.T) {
	h := health.NewHandler(func(context.Context) error { return errors.New("no reachable servers") }, "mongo", zap.NewNop())

	rec, resp := serve(t, h)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if resp.Status != "error" || resp.Message != "Database unavailable" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestServe_InMemory(t *testing.T) {
	rec, resp := serve(t, health.NewHandler(nil, "memory", zap.NewNop()))
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if resp.Database != "in-memory" {
		t.Errorf("database: got %q", resp.Database)
	}
}
