package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/chimeo/internal/app/system/ratelimit"
)

func TestLimiter_WindowResets(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := ratelimit.New(2, time.Minute).WithClock(func() time.Time { return now })

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two hits should be allowed")
	}
	if l.Allow("a") {
		t.Error("third hit should be refused")
	}
	if !l.Allow("b") {
		t.Error("other keys are independent")
	}
	if got := l.RetryAfter("a"); got != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", got)
	}

	now = now.Add(time.Minute)
	if !l.Allow("a") {
		t.Error("hit after the window closes should be allowed")
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := ratelimit.New(1, time.Hour)
	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("expected limit hit")
	}
	l.Reset("k")
	if !l.Allow("k") {
		t.Error("expected allow after Reset")
	}
}

func TestMiddleware(t *testing.T) {
	h := ratelimit.Middleware(ratelimit.New(1, time.Hour))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/org-requests", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	if rec := send(); rec.Code != http.StatusCreated {
		t.Fatalf("first request: got %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded", "198.51.100.1, 10.0.0.1", "", "10.0.0.2:80", "198.51.100.1"},
		{"real ip", "", "198.51.100.2", "10.0.0.2:80", "198.51.100.2"},
		{"remote with port", "", "", "192.0.2.7:4000", "192.0.2.7"},
		{"remote without port", "", "", "192.0.2.8", "192.0.2.8"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				req.Header.Set("X-Real-IP", tc.xri)
			}
			if got := ratelimit.ClientIP(req); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLoginLimiter(t *testing.T) {
	ll := ratelimit.NewLoginLimiter(100, time.Minute, 2, time.Minute)
	req := httptest.NewRequest("POST", "/admin/login", nil)

	for i := 0; i < 2; i++ {
		if ok, _, _ := ll.Check(req, "Ada@chimeo.test"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if ok, msg, _ := ll.Check(req, "ada@chimeo.test"); ok || msg == "" {
		t.Error("third attempt for the same email should be refused")
	}
	ll.ResetEmail("ADA@chimeo.test")
	if ok, _, _ := ll.Check(req, "ada@chimeo.test"); !ok {
		t.Error("expected allow after ResetEmail")
	}
}
