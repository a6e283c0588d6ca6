package httpx

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	careAuth "github.com/MrEthical07/careAuth"
)

// RequestContext attaches the caller's address and User-Agent to the request
// context for rate limiting and audit records.
func RequestContext(r *http.Request) context.Context {
	ctx := careAuth.WithClientIP(r.Context(), ClientIP(r))
	return careAuth.WithUserAgent(ctx, r.UserAgent())
}

// ClientIP returns the host part of RemoteAddr. Proxy headers are not
// trusted here; deploy behind chi's RealIP middleware to honor them.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// SafeRedirectPath keeps redirects inside the application: only relative
// paths starting with a single "/" are accepted.
func SafeRedirectPath(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return raw
}
