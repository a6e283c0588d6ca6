package flows

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/careAuth/jwt"
)

type AuthenticateMetrics struct {
	AuthenticateFailure int
	AuthenticateLatency int
}

type AuthenticateErrors struct {
	EngineNotReady         error
	AuthenticationRequired error
	TokenExpiredOrInvalid  error
}

// AuthenticateDeps captures access-token verification dependencies.
type AuthenticateDeps struct {
	VerifyToken func(string) (*jwt.Claims, bool)
	// ResolveRole reports false for role names the permission table does not
	// know. Such tokens are rejected.
	ResolveRole func(string) bool

	Now            func() time.Time
	MetricInc      func(int)
	ObserveLatency func(int, time.Duration)

	Metrics AuthenticateMetrics
	Errors  AuthenticateErrors
}

// RunAuthenticate verifies an access token and returns its identity. Refresh
// tokens are rejected.
func RunAuthenticate(_ context.Context, accessToken string, deps AuthenticateDeps) (jwt.Identity, error) {
	normalizeAuthenticateDeps(&deps)
	if deps.VerifyToken == nil {
		return jwt.Identity{}, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() {
		deps.ObserveLatency(deps.Metrics.AuthenticateLatency, deps.Now().Sub(start))
	}()

	if strings.TrimSpace(accessToken) == "" {
		return jwt.Identity{}, deps.Errors.AuthenticationRequired
	}

	claims, ok := deps.VerifyToken(accessToken)
	if !ok || claims.Kind != jwt.KindAccess || claims.UserID == "" {
		deps.MetricInc(deps.Metrics.AuthenticateFailure)
		return jwt.Identity{}, deps.Errors.TokenExpiredOrInvalid
	}
	if deps.ResolveRole != nil && !deps.ResolveRole(claims.Role) {
		deps.MetricInc(deps.Metrics.AuthenticateFailure)
		return jwt.Identity{}, deps.Errors.TokenExpiredOrInvalid
	}

	return claims.Identity(), nil
}

func normalizeAuthenticateDeps(deps *AuthenticateDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ObserveLatency == nil {
		deps.ObserveLatency = func(int, time.Duration) {}
	}
}
