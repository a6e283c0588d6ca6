package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/careAuth/jwt"
	"github.com/MrEthical07/careAuth/refresh"
)

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	RefreshSuccess       int
	RefreshFailure       int
	RefreshReuseDetected int
	RevokeAll            int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	RefreshSuccess       string
	RefreshInvalid       string
	RefreshReuseDetected string
}

// RefreshErrors carries host-level sentinel errors used by the refresh flow.
type RefreshErrors struct {
	EngineNotReady        error
	TokenExpiredOrInvalid error
	TokenRevoked          error
	Internal              error
	UserNotFound          error
	AccountState          AccountStateErrors
}

// RefreshDeps captures refresh rotation dependencies.
type RefreshDeps struct {
	Lifetimes TokenLifetimes

	Now func() time.Time

	VerifyToken    func(string) (*jwt.Claims, bool)
	LookupRefresh  func(context.Context, string) (string, bool, error)
	ConsumeRefresh func(context.Context, string) error
	StoreRefresh   func(context.Context, string, string, time.Time) error
	RevokeAll      func(context.Context, string) (int, error)
	IssueToken     func(jwt.Kind, jwt.Identity, time.Duration) (string, error)
	// FindAccountByID is optional. When set, the owner is re-read after the
	// presented token is consumed and the new pair carries the current role.
	FindAccountByID func(context.Context, string) (Account, error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)
	Warn      func(string, ...any)

	Metrics RefreshMetrics
	Events  RefreshEvents
	Errors  RefreshErrors
}

// RunRefresh rotates a refresh token. The presented token is consumed before
// anything is issued, so at most one caller wins for a given token.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (TokenResult, error) {
	normalizeRefreshDeps(&deps)

	if deps.VerifyToken == nil || deps.LookupRefresh == nil || deps.ConsumeRefresh == nil ||
		deps.StoreRefresh == nil || deps.IssueToken == nil {
		return TokenResult{}, deps.Errors.EngineNotReady
	}

	fail := func(userID, email string, err error, reason string) (TokenResult, error) {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshInvalid, false, userID, email, err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return TokenResult{}, err
	}

	claims, ok := deps.VerifyToken(refreshToken)
	if !ok {
		return fail("", "", deps.Errors.TokenExpiredOrInvalid, "verify_failed")
	}
	if claims.Kind != jwt.KindRefresh {
		return fail(claims.UserID, claims.Email, deps.Errors.TokenExpiredOrInvalid, "wrong_kind")
	}

	owner, active, err := deps.LookupRefresh(ctx, refreshToken)
	if err != nil {
		deps.Warn("careauth: refresh lookup failed", "error", err.Error())
		return fail(claims.UserID, claims.Email, deps.Errors.Internal, "lookup_failed")
	}
	if !active {
		return fail(claims.UserID, claims.Email, deps.Errors.TokenRevoked, "not_active")
	}
	if owner != claims.UserID {
		return fail(claims.UserID, claims.Email, deps.Errors.TokenRevoked, "owner_mismatch")
	}

	if err := deps.ConsumeRefresh(ctx, refreshToken); err != nil {
		switch {
		case errors.Is(err, refresh.ErrAlreadyConsumed):
			deps.MetricInc(deps.Metrics.RefreshReuseDetected)
			deps.MetricInc(deps.Metrics.RefreshFailure)
			deps.EmitAudit(ctx, deps.Events.RefreshReuseDetected, false, claims.UserID, claims.Email, deps.Errors.TokenRevoked, nil)
			return TokenResult{}, deps.Errors.TokenRevoked
		case errors.Is(err, refresh.ErrNotFound):
			return fail(claims.UserID, claims.Email, deps.Errors.TokenRevoked, "not_found")
		default:
			deps.Warn("careauth: refresh consume failed", "error", err.Error())
			return fail(claims.UserID, claims.Email, deps.Errors.Internal, "consume_failed")
		}
	}

	id := claims.Identity()
	if deps.FindAccountByID != nil {
		acc, err := deps.FindAccountByID(ctx, claims.UserID)
		switch {
		case err == nil:
			if stateErr := accountStateError(acc, deps.Errors.AccountState); stateErr != nil {
				revokeOwner(ctx, claims.UserID, deps)
				return fail(claims.UserID, claims.Email, stateErr, "account_state")
			}
			id = identityOf(acc)
		case errors.Is(err, deps.Errors.UserNotFound):
			revokeOwner(ctx, claims.UserID, deps)
			return fail(claims.UserID, claims.Email, deps.Errors.AccountState.Deactivated, "account_missing")
		default:
			deps.Warn("careauth: account recheck failed", "user_id", claims.UserID, "error", err.Error())
			return fail(claims.UserID, claims.Email, deps.Errors.Internal, "account_lookup_failed")
		}
	}

	rememberMe := rememberMeClass(claims, deps.Lifetimes)
	tokens, stage, err := issuePair(ctx, id, rememberMe, deps.Lifetimes, deps.Now(), deps.IssueToken, deps.StoreRefresh)
	if err != nil {
		deps.Warn("careauth: token issuance failed", "stage", stage, "error", err.Error())
		return fail(claims.UserID, claims.Email, deps.Errors.Internal, stage)
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, id.UserID, id.Email, nil, nil)
	return tokens, nil
}

// rememberMeClass reports whether claims were issued with the extended
// refresh lifetime.
func rememberMeClass(claims *jwt.Claims, lifetimes TokenLifetimes) bool {
	if lifetimes.RememberMeRefresh <= lifetimes.Refresh {
		return false
	}
	lifetime := claims.ExpiresAtTime().Sub(claims.IssuedAtTime())
	return lifetime > lifetimes.Refresh
}

func revokeOwner(ctx context.Context, userID string, deps RefreshDeps) {
	if deps.RevokeAll == nil {
		return
	}
	n, err := deps.RevokeAll(ctx, userID)
	if err != nil {
		deps.Warn("careauth: revoking tokens of blocked account failed", "user_id", userID, "error", err.Error())
		return
	}
	deps.MetricInc(deps.Metrics.RevokeAll)
	deps.Warn("careauth: revoked tokens of blocked account", "user_id", userID, "revoked", n)
}

func normalizeRefreshDeps(deps *RefreshDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
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
