package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/careAuth/jwt"
)

// TokenResult is the flow-local token pair shape.
type TokenResult struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	RememberMe       bool
	Identity         jwt.Identity
}

// TokenLifetimes holds the configured token TTLs.
type TokenLifetimes struct {
	Access            time.Duration
	Refresh           time.Duration
	RememberMeRefresh time.Duration
}

func (l TokenLifetimes) refreshTTL(rememberMe bool) time.Duration {
	if rememberMe && l.RememberMeRefresh > 0 {
		return l.RememberMeRefresh
	}
	return l.Refresh
}

// issuePair signs an access and refresh token for id and registers the
// refresh token. Nothing is returned unless both tokens exist and the
// refresh record was stored.
func issuePair(
	ctx context.Context,
	id jwt.Identity,
	rememberMe bool,
	lifetimes TokenLifetimes,
	now time.Time,
	issue func(jwt.Kind, jwt.Identity, time.Duration) (string, error),
	store func(context.Context, string, string, time.Time) error,
) (TokenResult, string, error) {
	access, err := issue(jwt.KindAccess, id, lifetimes.Access)
	if err != nil {
		return TokenResult{}, "issue_access", err
	}

	refreshTTL := lifetimes.refreshTTL(rememberMe)
	refreshToken, err := issue(jwt.KindRefresh, id, refreshTTL)
	if err != nil {
		return TokenResult{}, "issue_refresh", err
	}

	refreshExp := now.Add(refreshTTL)
	if err := store(ctx, refreshToken, id.UserID, refreshExp); err != nil {
		return TokenResult{}, "store_refresh", err
	}

	return TokenResult{
		AccessToken:      access,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(lifetimes.Access),
		RefreshExpiresAt: refreshExp,
		RememberMe:       rememberMe,
		Identity:         id,
	}, "", nil
}
