package refresh

import "errors"

var (
	// ErrNotFound is returned for unknown or expired token refs.
	ErrNotFound = errors.New("refresh token not found")
	// ErrAlreadyConsumed is returned when a token was already rotated or revoked.
	ErrAlreadyConsumed = errors.New("refresh token already consumed")
	// ErrExpired is returned when a record is stored at or after its expiry.
	ErrExpired = errors.New("refresh token already expired")
	// ErrDuplicate is returned when a token ref is stored twice.
	ErrDuplicate = errors.New("refresh token already stored")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("refresh store unavailable")
)
