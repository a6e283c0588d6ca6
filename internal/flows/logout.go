package flows

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/MrEthical07/careAuth/jwt"
	"github.com/MrEthical07/careAuth/refresh"
)

// LogoutRegistry is the part of the refresh registry used by logout.
type LogoutRegistry interface {
	Consume(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, ownerID string) (int, error)
}

type LogoutMetrics struct {
	Logout    int
	RevokeAll int
}

type LogoutEvents struct {
	Logout    string
	LogoutAll string
}

type LogoutErrors struct {
	EngineNotReady error
	InvalidInput   error
	Internal       error
}

// LogoutDeps captures logout and revoke-all dependencies.
type LogoutDeps struct {
	VerifyToken func(string) (*jwt.Claims, bool)
	Registry    LogoutRegistry

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)
	Warn      func(string, ...any)

	Metrics LogoutMetrics
	Events  LogoutEvents
	Errors  LogoutErrors
}

// RunLogout consumes refreshToken. Revocation failures are logged and never
// returned; an absent or unknown token is a no-op.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) error {
	normalizeLogoutDeps(&deps)
	if deps.Registry == nil {
		return deps.Errors.EngineNotReady
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	var userID, email string
	if deps.VerifyToken != nil {
		if claims, ok := deps.VerifyToken(refreshToken); ok {
			userID, email = claims.UserID, claims.Email
		}
	}

	err := deps.Registry.Consume(ctx, refreshToken)
	switch {
	case err == nil:
	case errors.Is(err, refresh.ErrNotFound), errors.Is(err, refresh.ErrAlreadyConsumed):
		err = nil
	default:
		deps.Warn("careauth: logout revocation failed", "user_id", userID, "error", err.Error())
	}

	deps.MetricInc(deps.Metrics.Logout)
	var auditErr error
	if err != nil {
		auditErr = deps.Errors.Internal
	}
	deps.EmitAudit(ctx, deps.Events.Logout, err == nil, userID, email, auditErr, nil)
	return nil
}

// RunRevokeUser consumes every active refresh token of userID.
func RunRevokeUser(ctx context.Context, userID string, deps LogoutDeps) (int, error) {
	normalizeLogoutDeps(&deps)
	if deps.Registry == nil {
		return 0, deps.Errors.EngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return 0, deps.Errors.InvalidInput
	}

	n, err := deps.Registry.RevokeAll(ctx, userID)
	if err != nil {
		deps.Warn("careauth: revoke all failed", "user_id", userID, "error", err.Error())
		deps.EmitAudit(ctx, deps.Events.LogoutAll, false, userID, "", deps.Errors.Internal, nil)
		return 0, deps.Errors.Internal
	}

	deps.MetricInc(deps.Metrics.RevokeAll)
	deps.EmitAudit(ctx, deps.Events.LogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{
			"revoked": strconv.Itoa(n),
		}
	})
	return n, nil
}

func normalizeLogoutDeps(deps *LogoutDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
}
