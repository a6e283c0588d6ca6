package limiters

import (
	"context"
	"strings"

	"github.com/MrEthical07/careAuth/internal/rate"
)

// LoginLimiter throttles password attempts per (client ip, email) pair.
type LoginLimiter struct {
	limiter *rate.Limiter
	policy  Policy
}

// NewLoginLimiter creates a [LoginLimiter]. Zero-value policy fields fall back
// to [DefaultLoginPolicy].
func NewLoginLimiter(limiter *rate.Limiter, policy Policy) *LoginLimiter {
	return &LoginLimiter{limiter: limiter, policy: policy.orDefault(DefaultLoginPolicy)}
}

// Policy returns the effective policy.
func (l *LoginLimiter) Policy() Policy {
	if l == nil {
		return DefaultLoginPolicy
	}
	return l.policy
}

// Check records a login attempt. A denied decision is returned together with
// [rate.ErrRateLimited].
func (l *LoginLimiter) Check(ctx context.Context, ip, email string) (rate.Decision, error) {
	if l == nil {
		return rate.Decision{Allowed: true}, nil
	}

	d, err := l.limiter.Check(ctx, loginKey(ip, email), l.policy.MaxAttempts, l.policy.Window)
	if err != nil {
		return rate.Decision{}, err
	}
	if !d.Allowed {
		return d, rate.ErrRateLimited
	}
	return d, nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, ip, email string) error {
	if l == nil {
		return nil
	}
	return l.limiter.Reset(ctx, loginKey(ip, email))
}

func loginKey(ip, email string) string {
	return "login:" + normalizeIP(ip) + ":" + strings.ToLower(strings.TrimSpace(email))
}
