package auditlog_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/chimeo/internal/app/features/auditlog"
	uierrors "github.com/dalemusser/chimeo/internal/app/features/errors"
	"github.com/dalemusser/chimeo/internal/app/store/audit"
	"github.com/dalemusser/chimeo/internal/app/store/memstore"
	"github.com/dalemusser/chimeo/internal/app/system/auth"
	"go.uber.org/zap"
)

type listBody struct {
	Events     []audit.Event `json:"events"`
	EventTypes []string      `json:"eventTypes"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Total      int64         `json:"total"`
	HasNext    bool          `json:"hasNext"`
}

var day = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func seededHandler(t *testing.T) *auditlog.Handler {
	t.Helper()
	store := memstore.New().Audit
	ctx := context.Background()
	events := []audit.Event{
		{Timestamp: day.Add(-48 * time.Hour), Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Actor: "ops@chimeo.test", Success: true},
		{Timestamp: day.Add(-time.Hour), Category: audit.CategoryRequest, EventType: audit.EventRequestSubmitted, RequestID: "r1", AccountEmail: "pastor@grace.test", Success: true},
		{Timestamp: day, Category: audit.CategoryRequest, EventType: audit.EventRequestApproved, RequestID: "r1", AccountEmail: "pastor@grace.test", Actor: "ops@chimeo.test", Success: true},
		{Timestamp: day.Add(time.Minute), Category: audit.CategoryTrial, EventType: audit.EventTrialProvisioned, AccountEmail: "pastor@grace.test", Success: true},
		{Timestamp: day.Add(2 * time.Hour), Category: audit.CategoryRequest, EventType: audit.EventRequestRejected, RequestID: "r2", Actor: "ops@chimeo.test", Success: true},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	logger := zap.NewNop()
	return auditlog.NewHandler(store, uierrors.NewErrorLogger(logger), logger)
}

func serveList(t *testing.T, h *auditlog.Handler, rawQuery string) (int, listBody) {
	t.Helper()
	req := httptest.NewRequest("GET", "/admin/audit?"+rawQuery, nil)
	rec := httptest.NewRecorder()
	h.ServeList(rec, req)

	var body listBody
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return rec.Code, body
}

func TestServeList_Filters(t *testing.T) {
	h := seededHandler(t)

	tests := []struct {
		name      string
		query     string
		wantTypes []string
	}{
		{"all newest first", "", []string{
			audit.EventRequestRejected, audit.EventTrialProvisioned, audit.EventRequestApproved,
			audit.EventRequestSubmitted, audit.EventLoginSuccess,
		}},
		{"category", "category=request", []string{
			audit.EventRequestRejected, audit.EventRequestApproved, audit.EventRequestSubmitted,
		}},
		{"event type", "eventType=login_success", []string{audit.EventLoginSuccess}},
		{"request history", "requestId=r1", []string{audit.EventRequestApproved, audit.EventRequestSubmitted}},
		{"account email is normalized", "email=%20Pastor@Grace.test", []string{
			audit.EventTrialProvisioned, audit.EventRequestApproved, audit.EventRequestSubmitted,
		}},
		{"single day", "start_date=2026-03-10&end_date=2026-03-10", []string{
			audit.EventRequestRejected, audit.EventTrialProvisioned, audit.EventRequestApproved, audit.EventRequestSubmitted,
		}},
		{"nothing matches", "requestId=missing", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, body := serveList(t, h, tc.query)
			if code != http.StatusOK {
				t.Fatalf("expected 200, got %d", code)
			}
			if body.Events == nil {
				t.Fatal("expected events to be an empty list, not null")
			}
			if len(body.Events) != len(tc.wantTypes) {
				t.Fatalf("expected %d events, got %d", len(tc.wantTypes), len(body.Events))
			}
			for i, want := range tc.wantTypes {
				if body.Events[i].EventType != want {
					t.Errorf("event %d: expected %s, got %s", i, want, body.Events[i].EventType)
				}
			}
			if body.Total != int64(len(tc.wantTypes)) {
				t.Errorf("expected total %d, got %d", len(tc.wantTypes), body.Total)
			}
		})
	}
}

func TestServeList_EventTypesForCategory(t *testing.T) {
	h := seededHandler(t)

	_, all := serveList(t, h, "")
	_, trial := serveList(t, h, "category=trial")
	if len(trial.EventTypes) != 4 {
		t.Errorf("expected 4 trial event types, got %v", trial.EventTypes)
	}
	if len(all.EventTypes) <= len(trial.EventTypes) {
		t.Errorf("expected all event types to include every category, got %d", len(all.EventTypes))
	}
}

func TestServeList_InvalidInput(t *testing.T) {
	h := seededHandler(t)
	for _, q := range []string{"category=billing", "start_date=yesterday", "end_date=2026-13-01"} {
		t.Run(q, func(t *testing.T) {
			if code, _ := serveList(t, h, q); code != http.StatusUnprocessableEntity {
				t.Errorf("expected 422, got %d", code)
			}
		})
	}
}

func TestServeList_Paging(t *testing.T) {
	store := memstore.New().Audit
	for i := 0; i < 120; i++ {
		_ = store.Log(context.Background(), audit.Event{
			Timestamp: day.Add(time.Duration(i) * time.Second),
			Category:  audit.CategoryAuth,
			EventType: audit.EventLogout,
			Actor:     fmt.Sprintf("admin%d@chimeo.test", i),
		})
	}
	logger := zap.NewNop()
	h := auditlog.NewHandler(store, uierrors.NewErrorLogger(logger), logger)

	_, first := serveList(t, h, "")
	if len(first.Events) != 50 || first.TotalPages != 3 || !first.HasNext {
		t.Errorf("page 1: got %d events, %d pages, hasNext=%v", len(first.Events), first.TotalPages, first.HasNext)
	}
	_, last := serveList(t, h, "page=3")
	if len(last.Events) != 20 || last.HasNext {
		t.Errorf("page 3: got %d events, hasNext=%v", len(last.Events), last.HasNext)
	}
	if last.Events[len(last.Events)-1].Actor != "admin0@chimeo.test" {
		t.Errorf("expected oldest event last, got %s", last.Events[len(last.Events)-1].Actor)
	}
}

func TestRoutes_RequireAdmin(t *testing.T) {
	h := seededHandler(t)
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "t", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	router := auditlog.Routes(h, sm)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	req := auth.WithTestUser(httptest.NewRequest("GET", "/", nil), &auth.SessionUser{Email: "ops@chimeo.test", Role: auth.RoleAdmin})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
