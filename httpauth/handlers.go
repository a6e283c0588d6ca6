package httpauth

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	careAuth "github.com/MrEthical07/careAuth"
	"github.com/MrEthical07/careAuth/internal/httpx"
	"github.com/MrEthical07/careAuth/permission"
	"github.com/MrEthical07/careAuth/session"
	"github.com/go-chi/chi/v5"
)

// Service is the subset of *careAuth.Engine the endpoints need.
type Service interface {
	Login(ctx context.Context, req careAuth.LoginRequest) (*careAuth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*careAuth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Register(ctx context.Context, req careAuth.RegisterRequest) (careAuth.Principal, error)
	Authenticate(ctx context.Context, accessToken string) (careAuth.Principal, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

// Handlers serves the authentication endpoints.
type Handlers struct {
	Svc     Service
	Cookies session.Policy
	Logger  *slog.Logger
}

func (h *Handlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Routes returns a router with the auth endpoints, meant to be mounted at
// /api/auth:
//
//	POST /login     {"email","password","remember_me"}
//	POST /refresh   refresh cookie or {"refresh_token"}
//	POST /logout
//	POST /register  {"email","password","name","role"}
//	GET  /me
//	POST /password  {"current_password","new_password"}
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
	r.Post("/register", h.Register)
	r.Get("/me", h.Me)
	r.Post("/password", h.ChangePassword)
	return r
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type principalResponse struct {
	ID          string                  `json:"id"`
	Email       string                  `json:"email"`
	Role        permission.Role         `json:"role"`
	Permissions []permission.Permission `json:"permissions,omitempty"`
}

type sessionResponse struct {
	User             principalResponse `json:"user"`
	AccessToken      string            `json:"access_token"`
	AccessExpiresAt  time.Time         `json:"access_expires_at"`
	RefreshExpiresAt time.Time         `json:"refresh_expires_at"`
	RememberMe       bool              `json:"remember_me"`
}

func newPrincipalResponse(p careAuth.Principal, withPermissions bool) principalResponse {
	out := principalResponse{ID: p.UserID, Email: p.Email, Role: p.Role}
	if withPermissions {
		out.Permissions = permission.PermissionsForRole(p.Role)
	}
	return out
}

// Login handles POST /login. Tokens are set as HttpOnly cookies; the access
// token is also returned for clients that send it as a bearer header.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !httpx.DecodeJSON(w, r, &body) {
		return
	}

	pair, err := h.Svc.Login(httpx.RequestContext(r), careAuth.LoginRequest{
		Email:      body.Email,
		Password:   body.Password,
		RememberMe: body.RememberMe,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSession(w, pair, http.StatusOK)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /refresh. A rejected refresh token clears both
// cookies.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := h.Cookies.RefreshToken(r)
	if !ok && r.ContentLength != 0 {
		var body refreshRequest
		if !httpx.DecodeJSON(w, r, &body) {
			return
		}
		token = body.RefreshToken
	}
	if token == "" {
		h.writeError(w, r, careAuth.ErrAuthenticationRequired)
		return
	}

	pair, err := h.Svc.Refresh(httpx.RequestContext(r), token)
	if err != nil {
		h.Cookies.Clear(w)
		h.writeError(w, r, err)
		return
	}

	h.writeSession(w, pair, http.StatusOK)
}

// Logout handles POST /logout. It always clears the cookies and answers 204.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := h.Cookies.RefreshToken(r); ok {
		if err := h.Svc.Logout(httpx.RequestContext(r), token); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", slog.String("error", err.Error()))
		}
	}
	h.Cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// Register handles POST /register. The account is created pending approval
// and no session is issued.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !httpx.DecodeJSON(w, r, &body) {
		return
	}
	role, ok := permission.ParseRole(body.Role)
	if !ok {
		h.writeError(w, r, careAuth.ErrInvalidInput)
		return
	}

	p, err := h.Svc.Register(httpx.RequestContext(r), careAuth.RegisterRequest{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
		Role:     role,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"user":   newPrincipalResponse(p, false),
		"status": careAuth.ApprovalPending,
	})
}

// Me handles GET /me. It uses the principal attached by the request gate and
// falls back to verifying the access token itself.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPrincipalResponse(p, true))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword handles POST /password. Every session of the user is
// revoked, so the cookies are cleared and the client must log in again.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body changePasswordRequest
	if !httpx.DecodeJSON(w, r, &body) {
		return
	}
	if err := h.Svc.ChangePassword(httpx.RequestContext(r), p.UserID, body.CurrentPassword, body.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) principal(r *http.Request) (careAuth.Principal, error) {
	if p, ok := careAuth.PrincipalFromContext(r.Context()); ok {
		return p, nil
	}
	token, found := h.Cookies.AccessToken(r)
	if !found {
		token, _ = httpx.BearerToken(r.Header.Get("Authorization"))
	}
	return h.Svc.Authenticate(r.Context(), token)
}

func (h *Handlers) writeSession(w http.ResponseWriter, pair *careAuth.TokenPair, status int) {
	h.Cookies.SetTokens(w, pair.AccessToken, pair.RefreshToken, pair.RememberMe)
	httpx.WriteJSON(w, status, sessionResponse{
		User:             newPrincipalResponse(pair.Principal, true),
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		RememberMe:       pair.RememberMe,
	})
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger().ErrorContext(r.Context(), "auth endpoint failure",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	if status == http.StatusTooManyRequests {
		var rle *careAuth.RateLimitError
		if errors.As(err, &rle) {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rle.ResetIn.Seconds()))))
		}
	}
	httpx.WriteError(w, status, code, message)
}
