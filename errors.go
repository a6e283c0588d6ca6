package careAuth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthenticationRequired is returned when no access token accompanies a
	// request that needs one.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrTokenExpiredOrInvalid covers every token verification failure. The
	// cause is never distinguished.
	ErrTokenExpiredOrInvalid = errors.New("token expired or invalid")
	// ErrTokenRevoked is returned when a refresh token was already consumed,
	// revoked or is unknown to the registry.
	ErrTokenRevoked           = errors.New("token revoked")
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrInsufficientRole       = errors.New("insufficient role")
	// ErrRateLimited is matched by every [*RateLimitError].
	ErrRateLimited        = errors.New("rate limited")
	ErrAccountPending     = errors.New("account pending approval")
	ErrAccountRejected    = errors.New("account rejected")
	ErrAccountDeactivated = errors.New("account deactivated")
	// ErrInvalidCredentials is returned for both unknown emails and wrong
	// passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAccountExists      = errors.New("account already exists")
	// ErrPasswordReuse is returned by [Engine.ChangePassword] when the new
	// password equals the current one.
	ErrPasswordReuse = errors.New("new password must differ from the current one")
	// ErrPasswordChangeUnsupported is returned by [Engine.ChangePassword] when
	// the credential store lacks [AccountLookup] or [PasswordUpdater].
	ErrPasswordChangeUnsupported = errors.New("password change unsupported")
	// ErrRegistrationDisabled is returned by [Engine.Register] when
	// self-service registration is switched off or unsupported by the store.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrUserNotFound is returned by [CredentialStore] implementations. The
	// engine maps it to [ErrInvalidCredentials] during login.
	ErrUserNotFound = errors.New("user not found")
	// ErrInternal hides storage and signing failures from callers.
	ErrInternal       = errors.New("internal error")
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitError reports a denied attempt together with the time left until
// the window resets.
type RateLimitError struct {
	ResetIn time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %d minutes", e.RetryMinutes())
}

// Is makes errors.Is(err, ErrRateLimited) hold for every *RateLimitError.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryMinutes rounds ResetIn up to whole minutes, never below one.
func (e *RateLimitError) RetryMinutes() int {
	if e == nil || e.ResetIn <= 0 {
		return 1
	}
	minutes := int((e.ResetIn + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}
