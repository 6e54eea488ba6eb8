package orgrequests_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	uierrors "github.com/dalemusser/chimeo/internal/app/features/errors"
	"github.com/dalemusser/chimeo/internal/app/gateway"
	"github.com/dalemusser/chimeo/internal/app/features/orgrequests"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/dalemusser/chimeo/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

func newRouter(t *testing.T) (http.Handler, *testutil.Onboarding) {
	t.Helper()
	o := testutil.NewOnboarding(t, t0)
	h := orgrequests.NewHandler(o.Services.Workflow, uierrors.NewErrorLogger(zap.NewNop()), zap.NewNop())
	return orgrequests.Routes(h), o
}

func TestHandleSubmit_JSON(t *testing.T) {
	router, o := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewJSONRequest("POST", "/", testutil.ValidFormJSON("Oak St Church", "Jordan@OakSt.org")))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	oid, err := primitive.ObjectIDFromHex(body.ID)
	if err != nil {
		t.Fatalf("id %q is not an ObjectID", body.ID)
	}
	req, err := o.Store.Requests.GetByID(t.Context(), oid)
	if err != nil {
		t.Fatalf("stored request: %v", err)
	}
	if req.Status != models.RequestPending || req.ContactEmail != "jordan@oakst.org" {
		t.Errorf("unexpected stored request: %+v", req)
	}
	if !req.SubmittedAt.Equal(t0) {
		t.Errorf("submittedAt: got %v", req.SubmittedAt)
	}
}

func veteransHallValues() url.Values {
	v := url.Values{}
	v.Set("orgName", "Veterans Hall")
	v.Set("orgType", "other")
	v.Set("otherOrgType", "Veterans association")
	v.Set("orgSize", "45")
	v.Set("street", "1 Main St")
	v.Set("city", "Dayton")
	v.Set("state", "OH")
	v.Set("zip", "45402")
	v.Set("contactName", "Sam Ortiz")
	v.Set("officeEmail", "office@vets.org")
	v.Set("contactEmail", "sam@vets.org")
	v.Set("contactPhone", "555-0199")
	v.Set("expectedUsage", "10")
	v.Set("useCase", models.UseCaseEventNotifications)
	return v
}

func TestHandleSubmit_Form(t *testing.T) {
	router, _ := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewFormRequest("POST", "/", veteransHallValues().Encode()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d (%s)", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "" {
		t.Errorf("Location: got %q, want none", loc)
	}
}

// FormData posted by fetch arrives as multipart/form-data.
func TestHandleSubmit_Multipart(t *testing.T) {
	router, o := newRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range veteransHallValues() {
		if err := mw.WriteField(k, vs[0]); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	oid, err := primitive.ObjectIDFromHex(body.ID)
	if err != nil {
		t.Fatalf("id %q is not an ObjectID", body.ID)
	}
	stored, err := o.Store.Requests.GetByID(t.Context(), oid)
	if err != nil {
		t.Fatalf("stored request: %v", err)
	}
	if stored.OrgName != "Veterans Hall" || stored.ContactEmail != "sam@vets.org" {
		t.Errorf("unexpected stored request: %+v", stored)
	}
}

func TestHandleSubmit_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantMissing bool
		wantInvalid bool
	}{
		{"empty object", `{}`, http.StatusUnprocessableEntity, true, false},
		{"bad email", `{"contactEmail":"nope"}`, http.StatusUnprocessableEntity, true, true},
		{"malformed", `{"orgName":`, http.StatusBadRequest, false, false},
		{"wrong json type", `{"orgName":5}`, http.StatusBadRequest, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router, o := newRouter(t)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, testutil.NewJSONRequest("POST", "/", tc.body))

			if rec.Code != tc.wantCode {
				t.Fatalf("status: got %d, want %d (%s)", rec.Code, tc.wantCode, rec.Body.String())
			}
			var body uierrors.Body
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if (len(body.Missing) > 0) != tc.wantMissing {
				t.Errorf("missing: got %v", body.Missing)
			}
			if (len(body.Invalid) > 0) != tc.wantInvalid {
				t.Errorf("invalid: got %v", body.Invalid)
			}
			list, _ := o.Store.Requests.List(t.Context(), gateway.RequestQuery{})
			if len(list) != 0 {
				t.Errorf("expected nothing stored, got %d requests", len(list))
			}
		})
	}
}

func TestHandleSubmit_StoreUnavailable(t *testing.T) {
	router, o := newRouter(t)
	o.Store.Requests.FailWrites = true

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewJSONRequest("POST", "/", testutil.ValidFormJSON("Oak St Church", "jordan@oakst.org")))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After")
	}
}
