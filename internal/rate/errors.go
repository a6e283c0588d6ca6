package rate

import "errors"

var (
	// ErrRateLimited is returned by policies when a key has exhausted its window.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
	// ErrInvalidPolicy is returned for non-positive limits or windows.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
)
