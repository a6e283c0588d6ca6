package careAuth

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess            = "login_success"
	auditEventLoginFailure            = "login_failure"
	auditEventLoginRateLimited        = "login_rate_limited"
	auditEventRefreshSuccess          = "refresh_success"
	auditEventRefreshInvalid          = "refresh_invalid"
	auditEventRefreshReuseDetected    = "refresh_reuse_detected"
	auditEventLogout                  = "logout"
	auditEventLogoutAll               = "logout_all"
	auditEventRegistrationSuccess     = "registration_success"
	auditEventRegistrationFailure     = "registration_failure"
	auditEventRegistrationDuplicate   = "registration_duplicate"
	auditEventRegistrationRateLimited = "registration_rate_limited"
	auditEventRateLimitTriggered      = "rate_limit_triggered"
	auditEventPasswordUpgraded        = "password_upgraded"
	auditEventPasswordChangeSuccess   = "password_change_success"
	auditEventPasswordChangeFailure   = "password_change_failure"
)

// AuditErrorCode is the stable snake_case error label stored in
// [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrAuthenticationRequired AuditErrorCode = "authentication_required"
	auditErrInvalidToken           AuditErrorCode = "invalid_token"
	auditErrTokenRevoked           AuditErrorCode = "token_revoked"
	auditErrInsufficientRole       AuditErrorCode = "insufficient_role"
	auditErrInsufficientPermission AuditErrorCode = "insufficient_permission"
	auditErrInvalidCredentials     AuditErrorCode = "invalid_credentials"
	auditErrRateLimited            AuditErrorCode = "rate_limited"
	auditErrAccountPending         AuditErrorCode = "account_pending"
	auditErrAccountRejected        AuditErrorCode = "account_rejected"
	auditErrAccountDeactivated     AuditErrorCode = "account_deactivated"
	auditErrInvalidInput           AuditErrorCode = "invalid_input"
	auditErrDuplicate              AuditErrorCode = "duplicate"
	auditErrUserNotFound           AuditErrorCode = "user_not_found"
	auditErrUnavailable            AuditErrorCode = "backend_unavailable"
	auditErrInternal               AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if p, ok := PrincipalFromContext(ctx); ok && p.UserID == userID {
		event.Role = p.Role.String()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return auditErrAuthenticationRequired
	case errors.Is(err, ErrTokenExpiredOrInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrInsufficientRole):
		return auditErrInsufficientRole
	case errors.Is(err, ErrInsufficientPermission):
		return auditErrInsufficientPermission
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrAccountPending):
		return auditErrAccountPending
	case errors.Is(err, ErrAccountRejected):
		return auditErrAccountRejected
	case errors.Is(err, ErrAccountDeactivated):
		return auditErrAccountDeactivated
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrRegistrationDisabled),
		errors.Is(err, ErrPasswordReuse):
		return auditErrInvalidInput
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrEngineNotReady), errors.Is(err, ErrPasswordChangeUnsupported):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
