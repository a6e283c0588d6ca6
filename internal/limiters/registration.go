package limiters

import (
	"context"

	"github.com/MrEthical07/careAuth/internal/rate"
)

// RegistrationLimiter throttles account creation per client ip.
type RegistrationLimiter struct {
	limiter *rate.Limiter
	policy  Policy
}

// NewRegistrationLimiter creates a [RegistrationLimiter]. Zero-value policy
// fields fall back to [DefaultRegistrationPolicy].
func NewRegistrationLimiter(limiter *rate.Limiter, policy Policy) *RegistrationLimiter {
	return &RegistrationLimiter{limiter: limiter, policy: policy.orDefault(DefaultRegistrationPolicy)}
}

// Enforce records a registration attempt from ip.
func (l *RegistrationLimiter) Enforce(ctx context.Context, ip string) (rate.Decision, error) {
	if l == nil {
		return rate.Decision{Allowed: true}, nil
	}

	d, err := l.limiter.Check(ctx, "register:"+normalizeIP(ip), l.policy.MaxAttempts, l.policy.Window)
	if err != nil {
		return rate.Decision{}, err
	}
	if !d.Allowed {
		return d, rate.ErrRateLimited
	}
	return d, nil
}
