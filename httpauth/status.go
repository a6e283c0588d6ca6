package httpauth

import (
	"errors"
	"net/http"

	careAuth "github.com/MrEthical07/careAuth"
)

// Response messages never distinguish an unknown email from a wrong password.
const (
	MsgInvalidCredentials = "invalid email or password"
	MsgSessionExpired     = "session expired, please sign in again"
	MsgAuthRequired       = "authentication required"
	MsgForbidden          = "insufficient permissions"
	MsgInvalidInput       = "invalid input"
	MsgInternal           = "internal error"
)

// StatusFor maps an engine error to an HTTP status, a stable error code and
// a user-facing message.
func StatusFor(err error) (status int, code, message string) {
	var rle *careAuth.RateLimitError
	switch {
	case err == nil:
		return http.StatusOK, "", ""
	case errors.As(err, &rle):
		return http.StatusTooManyRequests, "rate_limited", rle.Error()
	case errors.Is(err, careAuth.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", (&careAuth.RateLimitError{}).Error()
	case errors.Is(err, careAuth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", MsgInvalidCredentials
	case errors.Is(err, careAuth.ErrAuthenticationRequired):
		return http.StatusUnauthorized, "unauthorised", MsgAuthRequired
	case errors.Is(err, careAuth.ErrTokenExpiredOrInvalid), errors.Is(err, careAuth.ErrTokenRevoked):
		return http.StatusUnauthorized, "session_expired", MsgSessionExpired
	case errors.Is(err, careAuth.ErrAccountPending):
		return http.StatusForbidden, "account_pending", "account is awaiting approval"
	case errors.Is(err, careAuth.ErrAccountRejected):
		return http.StatusForbidden, "account_rejected", "account registration was rejected"
	case errors.Is(err, careAuth.ErrAccountDeactivated):
		return http.StatusForbidden, "account_deactivated", "account is deactivated"
	case errors.Is(err, careAuth.ErrInsufficientRole), errors.Is(err, careAuth.ErrInsufficientPermission):
		return http.StatusForbidden, "forbidden", MsgForbidden
	case errors.Is(err, careAuth.ErrRegistrationDisabled):
		return http.StatusForbidden, "registration_disabled", "registration is disabled"
	case errors.Is(err, careAuth.ErrAccountExists):
		return http.StatusConflict, "conflict", "an account with this email already exists"
	case errors.Is(err, careAuth.ErrPasswordReuse):
		return http.StatusBadRequest, "password_reuse", "new password must differ from the current one"
	case errors.Is(err, careAuth.ErrPasswordChangeUnsupported):
		return http.StatusNotImplemented, "unsupported", "password change is not available"
	case errors.Is(err, careAuth.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", MsgInvalidInput
	default:
		return http.StatusInternalServerError, "internal_error", MsgInternal
	}
}
