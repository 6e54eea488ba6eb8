package adminrequests_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/chimeo/internal/app/features/adminrequests"
	uierrors "github.com/dalemusser/chimeo/internal/app/features/errors"
	"github.com/dalemusser/chimeo/internal/app/system/auth"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/dalemusser/chimeo/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

type fixture struct {
	o      *testutil.Onboarding
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	o := testutil.NewOnboarding(t, t0)
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	h := adminrequests.NewHandler(o.Services.Console, o.Services.Trials, uierrors.NewErrorLogger(logger), logger)

	r := chi.NewRouter()
	r.Mount("/admin/requests", adminrequests.Routes(h, sm))
	r.Mount("/admin/accounts", adminrequests.AccountRoutes(h, sm))
	r.Mount("/admin/reconcile", adminrequests.ReconcileRoutes(h, sm))
	return &fixture{o: o, router: r}
}

func (f *fixture) seed(t *testing.T, orgName, email string, offset time.Duration) string {
	t.Helper()
	req, err := f.o.Store.Requests.Create(context.Background(), testutil.PendingRequest(orgName, email, t0.Add(offset)))
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return req.ID.Hex()
}

func (f *fixture) admin(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = testutil.NewJSONRequest(method, target, body)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, testutil.WithAdmin(req))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type listBody struct {
	Requests []models.OrganizationRequest `json:"requests"`
	Stats    struct {
		Total    int `json:"total"`
		Pending  int `json:"pending"`
		Approved int `json:"approved"`
		Rejected int `json:"rejected"`
		Trials   int `json:"trials"`
	} `json:"stats"`
}

type actionBody struct {
	Request                models.OrganizationRequest `json:"request"`
	ReconciliationRequired bool                       `json:"reconciliationRequired"`
	Stats                  struct {
		Pending  int `json:"pending"`
		Approved int `json:"approved"`
		Rejected int `json:"rejected"`
	} `json:"stats"`
}

func TestRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	for _, target := range []string{"/admin/requests", "/admin/requests/stats", "/admin/accounts/a@b.test"} {
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: got %d, want 401", target, rec.Code)
		}
	}
}

func TestServeList(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Oak St Church", "a@oak.test", 0)
	f.seed(t, "Maple School", "b@maple.test", time.Minute)
	f.seed(t, "Oakwood Hall", "c@oakwood.test", 2*time.Minute)

	tests := []struct {
		target string
		want   []string
	}{
		{"/admin/requests", []string{"Oakwood Hall", "Maple School", "Oak St Church"}},
		{"/admin/requests?status=pending&q=oak", []string{"Oakwood Hall", "Oak St Church"}},
		{"/admin/requests?status=approved", nil},
	}
	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			rec := f.admin("GET", tc.target, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("got %d (%s)", rec.Code, rec.Body.String())
			}
			body := decode[listBody](t, rec)
			var got []string
			for _, r := range body.Requests {
				got = append(got, r.OrgName)
			}
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Errorf("got %v, want %v", got, tc.want)
			}
			if body.Stats.Total != 3 || body.Stats.Pending != 3 {
				t.Errorf("stats: %+v", body.Stats)
			}
		})
	}
}

func TestServeList_BadStatus(t *testing.T) {
	f := newFixture(t)
	if rec := f.admin("GET", "/admin/requests?status=archived", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("got %d, want 422", rec.Code)
	}
}

func TestServeDetail(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "Oak St Church", "a@oak.test", 0)

	rec := f.admin("GET", "/admin/requests/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	d := decode[struct {
		OrgTypeLabel string `json:"orgTypeLabel"`
		NotifyEmail  string `json:"notifyEmail"`
	}](t, rec)
	if d.OrgTypeLabel != "Church" || d.NotifyEmail != "office@example.org" {
		t.Errorf("unexpected detail: %+v", d)
	}

	for _, bad := range []string{"not-an-id", "65f1c0ffee0000000000beef"} {
		if rec := f.admin("GET", "/admin/requests/"+bad, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", bad, rec.Code)
		}
	}
}

func TestHandleApprove(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "Oak St Church", "Jordan@OakSt.org", 0)

	rec := f.admin("POST", "/admin/requests/"+id+"/approve", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: got %d (%s)", rec.Code, rec.Body.String())
	}
	body := decode[actionBody](t, rec)
	if body.Request.Status != models.RequestApproved || body.Request.ApprovedBy != testutil.AdminUser().Email {
		t.Errorf("unexpected request: %+v", body.Request)
	}
	if body.Stats.Approved != 1 || body.Stats.Pending != 0 {
		t.Errorf("stats: %+v", body.Stats)
	}

	acct, err := f.o.Store.Accounts.Get(context.Background(), "jordan@oakst.org")
	if err != nil {
		t.Fatalf("account not provisioned: %v", err)
	}
	if acct.CurrentTier != models.TierPremiumTrial {
		t.Errorf("tier: got %q", acct.CurrentTier)
	}

	if rec := f.admin("POST", "/admin/requests/"+id+"/approve", ""); rec.Code != http.StatusConflict {
		t.Errorf("second approve: got %d, want 409", rec.Code)
	}
	if rec := f.admin("POST", "/admin/requests/"+id+"/reject", ""); rec.Code != http.StatusConflict {
		t.Errorf("reject after approve: got %d, want 409", rec.Code)
	}
}

func TestHandleApprove_ProvisioningFailureThenReconcile(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "Oak St Church", "jordan@oakst.org", 0)
	f.o.Store.Accounts.FailWrites = true

	rec := f.admin("POST", "/admin/requests/"+id+"/approve", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("approve: got %d, want 202 (%s)", rec.Code, rec.Body.String())
	}
	body := decode[actionBody](t, rec)
	if !body.ReconciliationRequired || body.Request.Status != models.RequestApproved {
		t.Errorf("unexpected body: %+v", body)
	}

	f.o.Store.Accounts.FailWrites = false
	rec = f.admin("POST", "/admin/reconcile", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reconcile: got %d", rec.Code)
	}
	res := decode[struct {
		Repaired []string `json:"repaired"`
		Failed   []string `json:"failed"`
	}](t, rec)
	if len(res.Repaired) != 1 || res.Repaired[0] != "jordan@oakst.org" || len(res.Failed) != 0 {
		t.Errorf("unexpected reconcile result: %+v", res)
	}
}

func TestHandleReject(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantReason string
	}{
		{"with reason", `{"reason":"Outside service area"}`, "Outside service area"},
		{"no body", "", models.DefaultRejectionReason},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.seed(t, "Oak St Church", "a@oak.test", 0)

			rec := f.admin("POST", "/admin/requests/"+id+"/reject", tc.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("got %d (%s)", rec.Code, rec.Body.String())
			}
			body := decode[actionBody](t, rec)
			if body.Request.Status != models.RequestRejected || body.Request.RejectionReason != tc.wantReason {
				t.Errorf("unexpected request: %+v", body.Request)
			}
			if body.Stats.Rejected != 1 {
				t.Errorf("stats: %+v", body.Stats)
			}
		})
	}
}

func TestAccounts(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "Oak St Church", "jordan@oakst.org", 0)
	if rec := f.admin("POST", "/admin/requests/"+id+"/approve", ""); rec.Code != http.StatusOK {
		t.Fatalf("approve: %d", rec.Code)
	}

	rec := f.admin("GET", "/admin/accounts/jordan%40oakst.org", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("account: got %d (%s)", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		Account      models.UserAccount  `json:"account"`
		Entitlements models.Entitlements `json:"entitlements"`
	}](t, rec)
	if got.Account.CurrentTier != models.TierPremiumTrial || !got.Entitlements.Premium {
		t.Errorf("unexpected account: %+v", got)
	}

	if rec := f.admin("POST", "/admin/accounts/jordan@oakst.org/tier", `{"tier":"gold"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad tier: got %d, want 422", rec.Code)
	}
	rec = f.admin("POST", "/admin/accounts/jordan@oakst.org/tier", `{"tier":"pro"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("tier: got %d (%s)", rec.Code, rec.Body.String())
	}
	got = decode[struct {
		Account      models.UserAccount  `json:"account"`
		Entitlements models.Entitlements `json:"entitlements"`
	}](t, rec)
	if got.Account.CurrentTier != models.TierPro || got.Account.SubscriptionStatus != models.SubscriptionActive {
		t.Errorf("unexpected account after tier change: %+v", got.Account)
	}

	if rec := f.admin("GET", "/admin/accounts/nobody@x.test", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown account: got %d, want 404", rec.Code)
	}
}
