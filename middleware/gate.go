package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	careAuth "github.com/MrEthical07/careAuth"
	"github.com/MrEthical07/careAuth/internal/httpx"
	"github.com/MrEthical07/careAuth/session"
)

// Authorizer verifies an access token against an access rule.
// *careAuth.Engine satisfies it.
type Authorizer interface {
	Authorize(ctx context.Context, accessToken string, rule careAuth.AccessRule) (careAuth.Principal, error)
}

// GateConfig configures [Gate].
type GateConfig struct {
	Rules RuleSet
	// APIPrefix marks paths that receive JSON errors instead of redirects.
	APIPrefix string
	// LoginPath receives unauthenticated browser requests with ?redirect=.
	LoginPath string
	// LandingPath receives authenticated browser requests that are forbidden.
	LandingPath string
	Cookies     session.Policy
	Logger      *slog.Logger
}

func (c GateConfig) withDefaults() GateConfig {
	if c.APIPrefix == "" {
		c.APIPrefix = "/api/"
	}
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.LandingPath == "" {
		c.LandingPath = "/"
	}
	if c.Cookies.AccessName == "" {
		c.Cookies = session.DefaultPolicy(false)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Gate resolves the route rule for every request, verifies the access token
// and attaches the principal to the request context.
//
// API paths get 401/403 JSON responses. Browser paths are redirected with 303:
// to the login page when unauthenticated, to the landing page when forbidden.
// An invalid or expired access cookie is cleared.
func Gate(auth Authorizer, cfg GateConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	table := newRouteTable(cfg.Rules)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := table.match(r.URL.Path)
			switch {
			case ok && rule.Public:
				next.ServeHTTP(w, r)
				return
			case !ok && !table.isProtected(r.URL.Path):
				next.ServeHTTP(w, r)
				return
			}
			// An unmatched path under a protected area only needs a session.
			enforce(auth, cfg, rule.accessRule(), next, w, r)
		})
	}
}

// Guard enforces a fixed rule on every request it wraps. It is meant for
// router groups that do not go through a [Gate] rule table.
func Guard(auth Authorizer, rule careAuth.AccessRule, cfg GateConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			enforce(auth, cfg, rule, next, w, r)
		})
	}
}

func enforce(auth Authorizer, cfg GateConfig, rule careAuth.AccessRule, next http.Handler, w http.ResponseWriter, r *http.Request) {
	if auth == nil {
		deny(cfg, w, r, careAuth.ErrEngineNotReady)
		return
	}

	token, fromCookie := accessTokenFrom(r, cfg.Cookies)
	p, err := auth.Authorize(r.Context(), token, rule)
	if err != nil {
		if fromCookie && errors.Is(err, careAuth.ErrTokenExpiredOrInvalid) {
			cfg.Cookies.ClearAccess(w)
		}
		deny(cfg, w, r, err)
		return
	}

	next.ServeHTTP(w, r.WithContext(careAuth.WithPrincipal(r.Context(), p)))
}

// accessTokenFrom prefers the access cookie and falls back to the bearer
// header. The second result reports whether the cookie supplied the token.
func accessTokenFrom(r *http.Request, cookies session.Policy) (string, bool) {
	if token, ok := cookies.AccessToken(r); ok {
		return token, true
	}
	if token, ok := httpx.BearerToken(r.Header.Get("Authorization")); ok {
		return token, false
	}
	return "", false
}

func deny(cfg GateConfig, w http.ResponseWriter, r *http.Request, err error) {
	api := strings.HasPrefix(r.URL.Path, cfg.APIPrefix)

	switch {
	case errors.Is(err, careAuth.ErrAuthenticationRequired), errors.Is(err, careAuth.ErrTokenExpiredOrInvalid):
		if api {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorised", "authentication required")
			return
		}
		redirectToLogin(cfg, w, r)

	case errors.Is(err, careAuth.ErrInsufficientRole), errors.Is(err, careAuth.ErrInsufficientPermission):
		if api {
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
			return
		}
		http.Redirect(w, r, cfg.LandingPath, http.StatusSeeOther)

	default:
		cfg.Logger.ErrorContext(r.Context(), "request gate failure",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if api {
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
			return
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func redirectToLogin(cfg GateConfig, w http.ResponseWriter, r *http.Request) {
	target := cfg.LoginPath
	if back := httpx.SafeRedirectPath(r.URL.RequestURI()); back != "" {
		target += "?redirect=" + url.QueryEscape(back)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
