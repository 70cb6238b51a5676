package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/auth"
	"github.com/sakif/travel-blog/internal/model"
	"github.com/sakif/travel-blog/internal/service"
)

// AuthService is what AuthHandler needs from the auth service.
type AuthService interface {
	CreateAccount(ctx context.Context, email, password, name string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*service.AuthResult, error)
	Logout(ctx context.Context, userID string) error
	GetCurrentUser(ctx context.Context, token string) (*model.Account, error)
}

// GitHubExchanger performs the GitHub OAuth redirect and code exchange.
type GitHubExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

const stateCookie = "oauth_state"

// AuthHandler serves sign-up, login, logout, the current user, and the
// GitHub OAuth flow.
//
//   - HandleSignup         → POST /api/auth/signup
//   - HandleLogin          → POST /api/auth/login
//   - HandleLogout         → POST /api/auth/logout
//   - HandleMe             → GET  /api/auth/me
//   - HandleGitHubLogin    → GET  /auth/github/login
//   - HandleGitHubCallback → GET  /auth/github/callback
type AuthHandler struct {
	svc          AuthService
	github       GitHubExchanger // nil when GitHub sign-in is not configured
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. Pass a nil github to disable the
// OAuth routes.
func NewAuthHandler(svc AuthService, github GitHubExchanger, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:          svc,
		github:       github,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// sessionResponse is the body of a successful signup or login. The token
// itself only travels in the HttpOnly cookie.
type sessionResponse struct {
	User *model.Account `json:"user"`
}

func (h *AuthHandler) startSession(w http.ResponseWriter, status int, res *service.AuthResult) {
	auth.SetTokenCookie(w, res.Token, res.ExpiresAt, h.cookieSecure)
	writeJSON(w, status, sessionResponse{User: res.Account})
}

// HandleSignup registers an account and logs it in.
//
// HTTP: POST /api/auth/signup
// REQUEST BODY: {"email": "...", "password": "...", "name": "..."}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.svc.CreateAccount(r.Context(), c.Email, c.Password, c.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.startSession(w, http.StatusCreated, res)
}

// HandleLogin checks credentials and sets the session cookie.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.svc.Login(r.Context(), c.Email, c.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.startSession(w, http.StatusOK, res)
}

// HandleLogout ends every session of the caller and clears the cookie.
//
// HTTP: POST /api/auth/logout (RequireAuth)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.svc.Logout(r.Context(), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	auth.ClearTokenCookie(w, h.cookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the logged-in account, or {"user": null} for anonymous
// callers. It never answers 401.
//
// HTTP: GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.GetCurrentUser(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: account})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state is stored in a short-lived cookie and checked on callback,
// so only flows started here can complete.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, h.logger, apperror.NotFound("login provider", "github"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow and redirects to the app.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, h.logger, apperror.NotFound("login provider", "github"))
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || r.URL.Query().Get("state") != c.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, h.logger, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, h.logger, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, h.logger, apperror.Unavailable("GitHub sign-in failed", err))
		return
	}

	res, err := h.svc.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	auth.SetTokenCookie(w, res.Token, res.ExpiresAt, h.cookieSecure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
