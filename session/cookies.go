package session

import (
	"errors"
	"net/http"
	"strings"
)

const (
	DefaultAccessCookie  = "access_token"
	DefaultRefreshCookie = "refresh_token"

	AccessMaxAge     = 3600
	RefreshMaxAge    = 7 * 24 * 3600
	RememberMeMaxAge = 30 * 24 * 3600
)

// Policy controls cookie names, lifetimes and flags.
type Policy struct {
	AccessName       string
	RefreshName      string
	Domain           string
	Path             string
	Secure           bool
	SameSite         http.SameSite
	AccessMaxAge     int
	RefreshMaxAge    int
	RememberMeMaxAge int
}

// DefaultPolicy returns the production cookie policy with Secure set
// according to production.
func DefaultPolicy(production bool) Policy {
	return Policy{
		AccessName:       DefaultAccessCookie,
		RefreshName:      DefaultRefreshCookie,
		Path:             "/",
		Secure:           production,
		SameSite:         http.SameSiteLaxMode,
		AccessMaxAge:     AccessMaxAge,
		RefreshMaxAge:    RefreshMaxAge,
		RememberMeMaxAge: RememberMeMaxAge,
	}
}

// Validate rejects policies that would produce unusable cookies.
func (p Policy) Validate() error {
	if strings.TrimSpace(p.AccessName) == "" || strings.TrimSpace(p.RefreshName) == "" {
		return errors.New("cookie names must be set")
	}
	if p.AccessName == p.RefreshName {
		return errors.New("access and refresh cookie names must differ")
	}
	if p.AccessMaxAge <= 0 || p.RefreshMaxAge <= 0 || p.RememberMeMaxAge <= 0 {
		return errors.New("cookie max-age values must be > 0")
	}
	if p.RememberMeMaxAge < p.RefreshMaxAge {
		return errors.New("remember-me max-age must be >= refresh max-age")
	}
	if p.SameSite == http.SameSiteNoneMode && !p.Secure {
		return errors.New("SameSite=None requires Secure cookies")
	}
	return nil
}

// SetTokens writes both token cookies.
func (p Policy) SetTokens(w http.ResponseWriter, accessToken, refreshToken string, rememberMe bool) {
	refreshAge := p.RefreshMaxAge
	if rememberMe {
		refreshAge = p.RememberMeMaxAge
	}
	http.SetCookie(w, p.cookie(p.AccessName, accessToken, p.AccessMaxAge))
	http.SetCookie(w, p.cookie(p.RefreshName, refreshToken, refreshAge))
}

// ClearAccess expires the access cookie only.
func (p Policy) ClearAccess(w http.ResponseWriter) {
	http.SetCookie(w, p.cookie(p.AccessName, "", -1))
}

// Clear expires both token cookies.
func (p Policy) Clear(w http.ResponseWriter) {
	http.SetCookie(w, p.cookie(p.AccessName, "", -1))
	http.SetCookie(w, p.cookie(p.RefreshName, "", -1))
}

// AccessToken returns the access cookie value, if present.
func (p Policy) AccessToken(r *http.Request) (string, bool) {
	return readCookie(r, p.AccessName)
}

// RefreshToken returns the refresh cookie value, if present.
func (p Policy) RefreshToken(r *http.Request) (string, bool) {
	return readCookie(r, p.RefreshName)
}

func (p Policy) cookie(name, value string, maxAge int) *http.Cookie {
	path := p.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   p.Domain,
		MaxAge:   maxAge,
		Secure:   p.Secure,
		HttpOnly: true,
		SameSite: p.SameSite,
	}
}

func readCookie(r *http.Request, name string) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
