// internal/app/features/adminauth/handler.go
package adminauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/chimeo/internal/app/features/errors"
	"github.com/dalemusser/chimeo/internal/app/gateway"
	adminstore "github.com/dalemusser/chimeo/internal/app/store/admins"
	"github.com/dalemusser/chimeo/internal/app/store/audit"
	"github.com/dalemusser/chimeo/internal/app/system/auditlog"
	"github.com/dalemusser/chimeo/internal/app/system/auth"
	"github.com/dalemusser/chimeo/internal/app/system/formutil"
	"github.com/dalemusser/chimeo/internal/app/system/limits"
	"github.com/dalemusser/chimeo/internal/app/system/ratelimit"
	"github.com/dalemusser/chimeo/internal/app/system/timeouts"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUserInfoURL is Google's OAuth2 userinfo endpoint.
const GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Directory is the admin lookup the handler needs. *adminstore.Store
// satisfies it.
type Directory interface {
	GetByEmail(ctx context.Context, email string) (models.Admin, error)
	Authenticate(ctx context.Context, email, password string) (models.Admin, error)
	TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

// Handler signs review-console admins in and out.
type Handler struct {
	Admins     Directory
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.LoginLimiter

	// Google OAuth. Empty ClientID/ClientSecret disables it.
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "https://chimeo.example/admin/auth/google/callback"
	Endpoint     oauth2.Endpoint
	UserInfoURL  string

	// AfterLogin is where a successful Google sign-in lands.
	AfterLogin string
}

// NewHandler creates the admin auth handler. baseURL is the public origin
// used to build the OAuth redirect URL.
func NewHandler(
	admins Directory,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	clientID, clientSecret, baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Admins:       admins,
		Log:          logger,
		SessionMgr:   sessionMgr,
		ErrLog:       errLog,
		AuditLog:     audit,
		Limiter:      ratelimit.NewLoginLimiter(limits.LoginAttemptsPerIP, limits.LoginIPWindow, limits.LoginAttemptsPerUser, limits.LoginUserWindow),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  strings.TrimRight(baseURL, "/") + "/admin/auth/google/callback",
		Endpoint:     google.Endpoint,
		UserInfoURL:  GoogleUserInfoURL,
		AfterLogin:   "/admin/requests",
	}
}

// GoogleConfigured reports whether Google sign-in is available.
func (h *Handler) GoogleConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: h.Endpoint,
	}
}

type sessionResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /admin/login                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

type loginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var f loginForm
	if err := formutil.Decode(w, r, &f, limits.MaxAdminBody); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode login", err, "Malformed request body.")
		return
	}
	email := strings.TrimSpace(f.Email)
	if email == "" || f.Password == "" {
		uierrors.WriteJSON(w, http.StatusUnprocessableEntity, uierrors.Body{
			Error:   "Email and password are required.",
			Missing: missingLoginFields(email, f.Password),
		})
		return
	}

	if ok, msg, retry := h.Limiter.Check(r, email); !ok {
		h.Log.Warn("admin login rate limited", zap.String("email", email))
		ratelimit.TooMany(w, retry, msg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Admins.Authenticate(ctx, email, f.Password)
	switch {
	case err == nil:
	case errors.Is(err, adminstore.ErrBadPassword):
		h.AuditLog.LoginFailed(ctx, r, email, h.failureEvent(ctx, email), "bad credentials")
		uierrors.WriteJSON(w, http.StatusUnauthorized, uierrors.Body{Error: "Invalid email or password."})
		return
	case errors.Is(err, adminstore.ErrDisabled):
		h.AuditLog.LoginFailed(ctx, r, email, audit.EventLoginFailedUserDisabled, "admin disabled")
		uierrors.WriteJSON(w, http.StatusForbidden, uierrors.Body{Error: "This account is disabled."})
		return
	default:
		h.ErrLog.LogServerError(w, r, "admin login lookup failed", err, "Sign-in is temporarily unavailable.")
		return
	}

	h.Limiter.ResetEmail(email)
	h.signIn(w, r, a, "password")
}

// failureEvent tells an unknown email from a wrong password for the audit
// trail. The response is the same either way.
func (h *Handler) failureEvent(ctx context.Context, email string) string {
	if _, err := h.Admins.GetByEmail(ctx, email); errors.Is(err, gateway.ErrNotFound) {
		return audit.EventLoginFailedUserNotFound
	}
	return audit.EventLoginFailedWrongPassword
}

func missingLoginFields(email, password string) []string {
	var m []string
	if email == "" {
		m = append(m, "email")
	}
	if password == "" {
		m = append(m, "password")
	}
	return m
}

// signIn writes the session, stamps lastLoginAt and audits. Redirects are
// left to the caller; on success a JSON body is written only when
// redirect is empty.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, a models.Admin, method string) bool {
	su := auth.SessionUser{
		ID:    a.ID.Hex(),
		Name:  a.FullName,
		Email: a.Email,
		Role:  auth.RoleAdmin,
	}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.ErrLog.LogServerError(w, r, "save admin session", err, "Could not start a session.")
		return false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.Admins.TouchLogin(ctx, a.ID, time.Now().UTC()); err != nil {
		h.Log.Warn("touch admin login failed", zap.String("admin_id", a.ID.Hex()), zap.Error(err))
	}
	h.AuditLog.LoginSuccess(ctx, r, a.Email, method)
	h.Log.Info("admin signed in", zap.String("email", a.Email), zap.String("method", method))

	if method == "password" {
		uierrors.WriteJSON(w, http.StatusOK, sessionResponse{ID: su.ID, Name: su.Name, Email: su.Email, Role: su.Role})
	}
	return true
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /admin/logout, GET /admin/session                                      |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.Logout(r.Context(), r, u.Email)
	}
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeSession reports the signed-in admin.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.WriteJSON(w, http.StatusUnauthorized, uierrors.Body{Error: "Sign in required."})
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, sessionResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /admin/auth/google                                                      |
| Redirects to Google's consent screen.                                       |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeGoogle(w http.ResponseWriter, r *http.Request) {
	if !h.GoogleConfigured() {
		uierrors.WriteJSON(w, http.StatusNotFound, uierrors.Body{Error: "Google sign-in is not configured."})
		return
	}
	state, err := h.SessionMgr.NewOAuthState(w, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create oauth state", err, "Could not start Google sign-in.")
		return
	}
	url := h.oauth2Config().AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
	h.Log.Debug("initiating Google OAuth flow", zap.String("redirect_url", url))
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /admin/auth/google/callback                                             |
| Exchanges the code, fetches the Google profile and signs in the matching    |
| admin. Google never creates admins; they must already exist.                |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeGoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", q.Get("error_description")))
		uierrors.WriteJSON(w, http.StatusUnauthorized, uierrors.Body{Error: "Google sign-in was cancelled."})
		return
	}
	if !h.SessionMgr.ConsumeOAuthState(w, r, q.Get("state")) {
		h.Log.Warn("invalid or missing OAuth state")
		uierrors.WriteJSON(w, http.StatusBadRequest, uierrors.Body{Error: "Sign-in link expired. Please try again."})
		return
	}
	code := q.Get("code")
	if code == "" {
		uierrors.WriteJSON(w, http.StatusBadRequest, uierrors.Body{Error: "Missing authorization code."})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		uierrors.WriteJSON(w, http.StatusBadGateway, uierrors.Body{Error: "Google sign-in failed."})
		return
	}
	info, err := h.fetchUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		uierrors.WriteJSON(w, http.StatusBadGateway, uierrors.Body{Error: "Google sign-in failed."})
		return
	}
	if !info.EmailVerified {
		h.AuditLog.LoginFailed(ctx, r, info.Email, audit.EventLoginFailedUserNotFound, "google email not verified")
		uierrors.WriteJSON(w, http.StatusForbidden, uierrors.Body{Error: "Your Google email address is not verified."})
		return
	}

	a, err := h.Admins.GetByEmail(ctx, info.Email)
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		h.Log.Info("Google OAuth: no admin for email", zap.String("email", info.Email))
		h.AuditLog.LoginFailed(ctx, r, info.Email, audit.EventLoginFailedUserNotFound, "no admin for google account")
		uierrors.WriteJSON(w, http.StatusForbidden, uierrors.Body{Error: "This Google account is not a review admin."})
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "admin lookup failed", err, "Sign-in is temporarily unavailable.")
		return
	}
	if a.Status != models.AdminActive {
		h.AuditLog.LoginFailed(ctx, r, info.Email, audit.EventLoginFailedUserDisabled, "admin disabled")
		uierrors.WriteJSON(w, http.StatusForbidden, uierrors.Body{Error: "This account is disabled."})
		return
	}

	if h.signIn(w, r, a, "google") {
		http.Redirect(w, r, h.AfterLogin, http.StatusSeeOther)
	}
}

// googleUserInfo is the subset of Google's userinfo response we read.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *Handler) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(h.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}
