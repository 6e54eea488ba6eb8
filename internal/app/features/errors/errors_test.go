package errors_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/dalemusser/chimeo/internal/app/features/errors"
	"github.com/dalemusser/chimeo/internal/app/onboarding"
	"go.uber.org/zap"
)

func TestLogOnboarding_StatusMapping(t *testing.T) {
	el := uierrors.NewErrorLogger(zap.NewNop())

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &onboarding.ValidationError{Missing: []string{"orgName"}}, http.StatusUnprocessableEntity},
		{"unauthenticated", onboarding.ErrUnauthenticated, http.StatusUnauthorized},
		{"not found", onboarding.ErrNotFound, http.StatusNotFound},
		{"invalid state", fmt.Errorf("approve: %w", onboarding.ErrInvalidState), http.StatusConflict},
		{"precondition", onboarding.ErrPreconditionFailed, http.StatusConflict},
		{"persistence", &onboarding.PersistenceError{Op: "x", Err: fmt.Errorf("timeout")}, http.StatusServiceUnavailable},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			el.LogOnboarding(rec, httptest.NewRequest("POST", "/x", nil), "op", tc.err)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q", ct)
			}
		})
	}
}

func TestLogOnboarding_ValidationBody(t *testing.T) {
	el := uierrors.NewErrorLogger(nil)
	rec := httptest.NewRecorder()
	el.LogOnboarding(rec, httptest.NewRequest("POST", "/org-requests", nil), "submit", &onboarding.ValidationError{
		Missing: []string{"orgName", "zip"},
		Invalid: []string{"officeEmail"},
	})

	var body uierrors.Body
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Missing) != 2 || body.Missing[1] != "zip" {
		t.Errorf("missing = %v", body.Missing)
	}
	if len(body.Invalid) != 1 || body.Invalid[0] != "officeEmail" {
		t.Errorf("invalid = %v", body.Invalid)
	}
}
