package careAuth

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/careAuth/internal/audit"
	internalmetrics "github.com/MrEthical07/careAuth/internal/metrics"
	"github.com/MrEthical07/careAuth/permission"
)

// Principal is the authenticated identity derived from a verified access
// token. It is never persisted.
type Principal struct {
	UserID string
	Email  string
	Role   permission.Role
}

// HasPermission reports whether the principal's role grants perm.
func (p Principal) HasPermission(perm permission.Permission) bool {
	return permission.HasPermission(p.Role, perm)
}

// TokenPair is the result of a login or a refresh rotation.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	// RememberMe reports whether the refresh token uses the extended lifetime.
	RememberMe bool
	Principal  Principal
}

type LoginRequest struct {
	Email      string
	Password   string
	RememberMe bool
}

// RegisterRequest carries a self-service registration. Role is the role the
// applicant asks for; super_admin cannot be requested.
type RegisterRequest struct {
	Email    string
	Password string
	Name     string
	Role     permission.Role
}

// ApprovalStatus is the administrative review state of an account.
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalRejected ApprovalStatus = "rejected"
)

// CredentialRecord is what a [CredentialStore] returns for one account.
type CredentialRecord struct {
	UserID         string
	Email          string
	Role           permission.Role
	PasswordHash   string
	IsActive       bool
	ApprovalStatus ApprovalStatus
}

// CredentialStore is the account storage collaborator used by login.
//
// FindByEmail must return [ErrUserNotFound] (or an error wrapping it) when no
// account matches. VerifyPassword reports a mismatch as (false, nil).
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (CredentialRecord, error)
	VerifyPassword(plain, hash string) (bool, error)
}

// AccountLookup is optionally implemented by a [CredentialStore]. When present,
// refresh rotation re-reads the account so deactivation takes effect at the
// next refresh instead of at refresh-token expiry.
type AccountLookup interface {
	FindByID(ctx context.Context, userID string) (CredentialRecord, error)
}

// PasswordUpdater is optionally implemented by a [CredentialStore]. It backs
// [Engine.ChangePassword] and the hash upgrade after login. It must return
// [ErrUserNotFound] when no account has userID.
type PasswordUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// NewAccount is the input to [AccountCreator.CreateAccount].
type NewAccount struct {
	Email          string
	Name           string
	Role           permission.Role
	PasswordHash   string
	ApprovalStatus ApprovalStatus
}

// AccountCreator is optionally implemented by a [CredentialStore] to support
// [Engine.Register]. It must return [ErrAccountExists] for duplicate emails.
type AccountCreator interface {
	CreateAccount(ctx context.Context, account NewAccount) (CredentialRecord, error)
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
// Sinks run on the dispatcher goroutine; a slow or failing sink never blocks
// a login.
type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per event to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs events through a [slog.Logger].
type SlogSink = internalaudit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// MetricID identifies a counter or histogram in the in-process metrics.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess             = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure             = MetricID(internalmetrics.MetricLoginFailure)
	MetricLoginRateLimited         = MetricID(internalmetrics.MetricLoginRateLimited)
	MetricLoginAccountBlocked      = MetricID(internalmetrics.MetricLoginAccountBlocked)
	MetricRefreshSuccess           = MetricID(internalmetrics.MetricRefreshSuccess)
	MetricRefreshFailure           = MetricID(internalmetrics.MetricRefreshFailure)
	MetricRefreshReuseDetected     = MetricID(internalmetrics.MetricRefreshReuseDetected)
	MetricLogout                   = MetricID(internalmetrics.MetricLogout)
	MetricRevokeAll                = MetricID(internalmetrics.MetricRevokeAll)
	MetricRegistrationSuccess      = MetricID(internalmetrics.MetricRegistrationSuccess)
	MetricRegistrationDuplicate    = MetricID(internalmetrics.MetricRegistrationDuplicate)
	MetricRegistrationRateLimited  = MetricID(internalmetrics.MetricRegistrationRateLimited)
	MetricRateLimitHit             = MetricID(internalmetrics.MetricRateLimitHit)
	MetricAuthenticateFailure      = MetricID(internalmetrics.MetricAuthenticateFailure)
	MetricGateUnauthenticated      = MetricID(internalmetrics.MetricGateUnauthenticated)
	MetricGateForbidden            = MetricID(internalmetrics.MetricGateForbidden)
	MetricPasswordUpgraded         = MetricID(internalmetrics.MetricPasswordUpgraded)
	MetricPasswordChangeSuccess    = MetricID(internalmetrics.MetricPasswordChangeSuccess)
	MetricPasswordChangeInvalidOld = MetricID(internalmetrics.MetricPasswordChangeInvalidOld)
	MetricAuthenticateLatency      = MetricID(internalmetrics.MetricAuthenticateLatency)
)

// Metrics holds atomic counters and the optional latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
