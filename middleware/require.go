package middleware

import (
	"net/http"

	careAuth "github.com/MrEthical07/careAuth"
	"github.com/MrEthical07/careAuth/permission"
)

// RequireAuthenticated returns the principal the gate attached to r, or
// [careAuth.ErrAuthenticationRequired].
func RequireAuthenticated(r *http.Request) (careAuth.Principal, error) {
	p, ok := careAuth.PrincipalFromContext(r.Context())
	if !ok {
		return careAuth.Principal{}, careAuth.ErrAuthenticationRequired
	}
	return p, nil
}

// RequirePermission is [RequireAuthenticated] plus a single permission check.
func RequirePermission(r *http.Request, perm permission.Permission) (careAuth.Principal, error) {
	p, err := RequireAuthenticated(r)
	if err != nil {
		return careAuth.Principal{}, err
	}
	if !p.HasPermission(perm) {
		return p, careAuth.ErrInsufficientPermission
	}
	return p, nil
}

// RequireAnyRole is [RequireAuthenticated] plus role membership.
func RequireAnyRole(r *http.Request, roles ...permission.Role) (careAuth.Principal, error) {
	p, err := RequireAuthenticated(r)
	if err != nil {
		return careAuth.Principal{}, err
	}
	if !permission.HasAnyRole(p.Role, roles) {
		return p, careAuth.ErrInsufficientRole
	}
	return p, nil
}
