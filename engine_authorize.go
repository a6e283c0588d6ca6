package careAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/careAuth/permission"
)

// AccessRule is the requirement a route places on the principal. Roles are
// matched with OR semantics, as are Permissions. An empty rule only requires
// authentication.
type AccessRule struct {
	Roles       []permission.Role
	Permissions []permission.Permission
}

// CheckAccess applies rule to p. Role membership is checked before
// permissions.
func CheckAccess(p Principal, rule AccessRule) error {
	if len(rule.Roles) > 0 && !permission.HasAnyRole(p.Role, rule.Roles) {
		return ErrInsufficientRole
	}
	if len(rule.Permissions) > 0 && !permission.Default().HasAny(p.Role, rule.Permissions) {
		return ErrInsufficientPermission
	}
	return nil
}

// Authorize authenticates accessToken and applies rule. It returns
// [ErrAuthenticationRequired] for an empty token, [ErrTokenExpiredOrInvalid]
// for a token that fails verification, and [ErrInsufficientRole] or
// [ErrInsufficientPermission] when the principal does not satisfy rule.
func (e *Engine) Authorize(ctx context.Context, accessToken string, rule AccessRule) (Principal, error) {
	if e == nil {
		return Principal{}, ErrEngineNotReady
	}

	p, err := e.Authenticate(ctx, accessToken)
	if err != nil {
		if errors.Is(err, ErrAuthenticationRequired) || errors.Is(err, ErrTokenExpiredOrInvalid) {
			e.metricInc(MetricGateUnauthenticated)
		}
		return Principal{}, err
	}

	if err := CheckAccess(p, rule); err != nil {
		e.metricInc(MetricGateForbidden)
		return p, err
	}
	return p, nil
}
