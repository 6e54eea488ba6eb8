package bootstrap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/chimeo/internal/app/system/auditlog"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/dalemusser/chimeo/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func memoryConfig() AppConfig {
	return AppConfig{
		StoreBackend:       BackendMemory,
		SessionKey:         "test-session-key-must-be-32-chars-long",
		SessionName:        "chimeo-test",
		SessionMaxAge:      time.Hour,
		SiteName:           "Chimeo",
		BaseURL:            "http://localhost:3000",
		AdminEmail:         "ops@chimeo.test",
		AdminPassword:      "correct horse battery",
		TrialLength:        models.TrialLength,
		SweepBatch:         100,
		AuditLogAuth:       auditlog.All,
		AuditLogOnboarding: auditlog.All,
	}
}

func TestValidate(t *testing.T) {
	mongoCfg := memoryConfig()
	mongoCfg.StoreBackend = BackendMongo
	mongoCfg.MongoURI = "mongodb://localhost:27017"
	mongoCfg.MongoDatabase = "chimeo"

	tests := []struct {
		name    string
		env     string
		mutate  func(*AppConfig)
		base    AppConfig
		wantErr bool
	}{
		{"memory in dev", "dev", nil, memoryConfig(), false},
		{"memory in prod", "prod", nil, memoryConfig(), true},
		{"mongo ok", "dev", nil, mongoCfg, false},
		{"bad mongo uri", "dev", func(c *AppConfig) { c.MongoURI = "postgres://nope" }, mongoCfg, true},
		{"missing database", "dev", func(c *AppConfig) { c.MongoDatabase = " " }, mongoCfg, true},
		{"unknown backend", "dev", func(c *AppConfig) { c.StoreBackend = "redis" }, memoryConfig(), true},
		{"zero trial length", "dev", func(c *AppConfig) { c.TrialLength = 0 }, memoryConfig(), true},
		{"negative batch", "dev", func(c *AppConfig) { c.SweepBatch = -1 }, memoryConfig(), true},
		{"bad audit destination", "dev", func(c *AppConfig) { c.AuditLogAuth = "kafka" }, memoryConfig(), true},
		{"google id without secret", "dev", func(c *AppConfig) { c.GoogleClientID = "id" }, memoryConfig(), true},
		{"dev session key in prod", "prod", func(c *AppConfig) { c.SessionKey = "dev-only-change-me-please-0123456789ABCDEF" }, mongoCfg, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.base
			if tc.mutate != nil {
				tc.mutate(&cfg)
			}
			err := validate(tc.env, cfg, testLogger())
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnsureBootstrapAdmin_Memory(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps, err := connect(ctx, memoryConfig(), testLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if deps.Memory == nil || deps.MongoDatabase != nil {
		t.Fatal("expected memory backend only")
	}

	for i := 0; i < 2; i++ {
		if err := ensureBootstrapAdmin(ctx, deps, "ops@chimeo.test", "pw-123456", testLogger()); err != nil {
			t.Fatalf("ensureBootstrapAdmin #%d: %v", i+1, err)
		}
	}
	if _, err := deps.Memory.Admins.Authenticate(ctx, "OPS@chimeo.test", "pw-123456"); err != nil {
		t.Errorf("expected bootstrap admin to sign in: %v", err)
	}
}

func TestEnsureBootstrapAdmin_Mongo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoDatabase: db}
	if err := ensureBootstrapAdmin(ctx, deps, "ops@chimeo.test", "", testLogger()); err != nil {
		t.Fatalf("ensureBootstrapAdmin: %v", err)
	}
	// A second run with a password must not overwrite the existing admin.
	if err := ensureBootstrapAdmin(ctx, deps, "ops@chimeo.test", "late-password", testLogger()); err != nil {
		t.Fatalf("ensureBootstrapAdmin again: %v", err)
	}

	n, err := db.Collection("admins").CountDocuments(ctx, map[string]any{"emailCI": "ops@chimeo.test"})
	if err != nil {
		t.Fatalf("count admins: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 admin, got %d", n)
	}
}

func TestEnsureBootstrapAdmin_NoEmail(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := ensureBootstrapAdmin(ctx, DBDeps{}, "", "", testLogger()); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
}

func TestBuildHandler_RequiresStartup(t *testing.T) {
	_, err := BuildHandler(&config.CoreConfig{Env: "dev"}, memoryConfig(), DBDeps{}, testLogger())
	if err == nil {
		t.Error("expected error when Startup has not run")
	}
}

// startMemoryApp runs the hooks in WAFFLE's order over the memory backend
// and serves the handler.
func startMemoryApp(t *testing.T, cfg AppConfig) *httptest.Server {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coreCfg := &config.CoreConfig{Env: "dev"}
	deps, err := ConnectDB(ctx, coreCfg, cfg, testLogger())
	if err != nil {
		t.Fatalf("ConnectDB: %v", err)
	}
	if err := EnsureSchema(ctx, coreCfg, cfg, deps, testLogger()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := Startup(ctx, coreCfg, cfg, deps, testLogger()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	h, err := BuildHandler(coreCfg, cfg, deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler: %v", err)
	}

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := Shutdown(ctx, coreCfg, cfg, deps, testLogger()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func do(t *testing.T, c *http.Client, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestBuildHandler_MemoryEndToEnd(t *testing.T) {
	srv := startMemoryApp(t, memoryConfig())
	c := newClient(t)

	code, body := do(t, c, "GET", srv.URL+"/health", "")
	if code != http.StatusOK || !strings.Contains(body, `"in-memory"`) {
		t.Fatalf("health: %d %s", code, body)
	}

	code, body = do(t, c, "POST", srv.URL+"/org-requests", testutil.ValidFormJSON("Grace Chapel", "pastor@grace.test"))
	if code != http.StatusCreated {
		t.Fatalf("submit: %d %s", code, body)
	}

	// The console is closed until an admin signs in.
	if code, _ := do(t, c, "GET", srv.URL+"/admin/requests", ""); code != http.StatusUnauthorized {
		t.Errorf("expected 401 before login, got %d", code)
	}

	code, body = do(t, c, "POST", srv.URL+"/admin/login", `{"email":"ops@chimeo.test","password":"correct horse battery"}`)
	if code != http.StatusOK {
		t.Fatalf("login: %d %s", code, body)
	}

	code, body = do(t, c, "GET", srv.URL+"/admin/requests?status=pending", "")
	if code != http.StatusOK {
		t.Fatalf("list: %d %s", code, body)
	}
	var list struct {
		Requests []struct {
			ID      string `json:"id"`
			OrgName string `json:"orgName"`
		} `json:"requests"`
		Stats struct {
			Pending int `json:"pending"`
		} `json:"stats"`
	}
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Requests) != 1 || list.Requests[0].OrgName != "Grace Chapel" || list.Stats.Pending != 1 {
		t.Fatalf("unexpected list: %s", body)
	}

	code, body = do(t, c, "POST", srv.URL+"/admin/requests/"+list.Requests[0].ID+"/approve", "")
	if code != http.StatusOK {
		t.Fatalf("approve: %d %s", code, body)
	}

	code, body = do(t, c, "GET", srv.URL+"/admin/accounts/pastor@grace.test", "")
	if code != http.StatusOK || !strings.Contains(body, `"premium_trial"`) {
		t.Errorf("account after approval: %d %s", code, body)
	}

	code, body = do(t, c, "GET", srv.URL+"/metrics", "")
	if code != http.StatusOK || !strings.Contains(body, "chimeo_requests_submitted_total") {
		t.Errorf("metrics: %d", code)
	}
}

func TestBuildHandler_FallbackRoutes(t *testing.T) {
	srv := startMemoryApp(t, memoryConfig())
	c := newClient(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"unknown path", "GET", "/nope", http.StatusNotFound},
		{"wrong method", "GET", "/org-requests", http.StatusMethodNotAllowed},
		{"entitlements without token", "GET", "/api/entitlements/a@b.test", http.StatusServiceUnavailable},
		{"google not configured", "GET", "/admin/auth/google", http.StatusNotFound},
		{"session without cookie", "GET", "/admin/session", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, body := do(t, c, tc.method, srv.URL+tc.path, "")
			if code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, code, body)
			}
		})
	}
}

func TestBuildHandler_AuditTrail(t *testing.T) {
	srv := startMemoryApp(t, memoryConfig())
	c := newClient(t)

	if code, body := do(t, c, "POST", srv.URL+"/admin/login", `{"email":"ops@chimeo.test","password":"correct horse battery"}`); code != http.StatusOK {
		t.Fatalf("login: %d %s", code, body)
	}
	code, body := do(t, c, "GET", srv.URL+"/admin/audit?category=auth", "")
	if code != http.StatusOK || !strings.Contains(body, `"login_success"`) {
		t.Errorf("audit: %d %s", code, body)
	}
}
