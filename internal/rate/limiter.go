package rate

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of one [Limiter.Check].
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Store counts attempts per key inside fixed windows. Incr must be atomic per
// key: it opens a window of length window on the first hit (or once the
// previous window has elapsed) and returns the post-increment count together
// with the time left in the current window.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
	Reset(ctx context.Context, key string) error
}

// Limiter applies fixed-window limits on top of a [Store].
type Limiter struct {
	store Store
}

// New creates a [Limiter] backed by store.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Check records one attempt against key and reports whether it is within
// maxAttempts for the current window.
func (l *Limiter) Check(ctx context.Context, key string, maxAttempts int, window time.Duration) (Decision, error) {
	if maxAttempts <= 0 || window <= 0 {
		return Decision{}, ErrInvalidPolicy
	}

	count, ttl, err := l.store.Incr(ctx, key, window)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ttl <= 0 || ttl > window {
		ttl = window
	}

	remaining := maxAttempts - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= int64(maxAttempts),
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.store.Reset(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
