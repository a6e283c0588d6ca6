package careAuth

import (
	"context"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/careAuth/internal/audit"
	internalflows "github.com/MrEthical07/careAuth/internal/flows"
	"github.com/MrEthical07/careAuth/internal/limiters"
	"github.com/MrEthical07/careAuth/jwt"
	"github.com/MrEthical07/careAuth/password"
	"github.com/MrEthical07/careAuth/permission"
	"github.com/MrEthical07/careAuth/refresh"
)

// Engine is the session service. It issues, rotates and revokes tokens and
// verifies access tokens for the request gate. Build one with [New] and share
// it; all methods are safe for concurrent use.
type Engine struct {
	config       Config
	jwtManager   *jwt.Manager
	refresh      *refresh.Registry
	loginLimiter *limiters.LoginLimiter
	regLimiter   *limiters.RegistrationLimiter
	passwordHash *password.Hasher
	credentials  CredentialStore
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
	now          func() time.Time
	dummyHash    string
	flows        internalflows.Deps
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}

// Login verifies credentials and returns a new token pair. The login limiter
// is consulted before the credential store, so an exhausted budget denies even
// a correct password. Unknown emails and wrong passwords both return
// [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	out, err := internalflows.RunLogin(ctx, req.Email, req.Password, req.RememberMe, e.flows.Login)
	if err != nil {
		return nil, err
	}
	return tokenPairFromFlow(out), nil
}

// Refresh rotates refreshToken. The presented token is consumed before a new
// pair is issued; a token that was already consumed, revoked or is unknown
// returns [ErrTokenRevoked].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	out, err := internalflows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	if err != nil {
		return nil, err
	}
	return tokenPairFromFlow(out), nil
}

// Logout revokes refreshToken. Storage failures are logged and never
// returned, so callers can always clear cookies and move on.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunLogout(ctx, refreshToken, e.flows.Logout)
}

// RevokeUser revokes every active refresh token of userID. Call it when an
// account is deactivated; outstanding access tokens stay valid until expiry.
func (e *Engine) RevokeUser(ctx context.Context, userID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	return internalflows.RunRevokeUser(ctx, userID, e.flows.Logout)
}

// Register creates an account awaiting approval. The credential store must
// implement [AccountCreator].
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (Principal, error) {
	if e == nil {
		return Principal{}, ErrEngineNotReady
	}
	acc, err := internalflows.RunRegister(ctx, internalflows.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	}, e.flows.Register)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: acc.UserID, Email: acc.Email, Role: acc.Role}, nil
}

// Authenticate verifies an access token and returns its principal.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	if e == nil {
		return Principal{}, ErrEngineNotReady
	}
	id, err := internalflows.RunAuthenticate(ctx, accessToken, e.flows.Authenticate)
	if err != nil {
		return Principal{}, err
	}
	role, _ := permission.ParseRole(id.Role)
	return Principal{UserID: id.UserID, Email: id.Email, Role: role}, nil
}

// ChangePassword replaces the password of userID after verifying oldPassword
// and revokes every refresh token the user holds. The credential store must
// implement [AccountLookup] and [PasswordUpdater]; otherwise it returns
// [ErrPasswordChangeUnsupported]. A wrong oldPassword returns
// [ErrInvalidCredentials].
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunChangePassword(ctx, userID, oldPassword, newPassword, e.flows.ChangePassword)
}

// HashPassword hashes plain with the engine's argon2id parameters. Register,
// ChangePassword and the upgrade after login hash through it.
func (e *Engine) HashPassword(plain string) (string, error) {
	if e == nil || e.passwordHash == nil {
		return "", ErrEngineNotReady
	}
	return e.passwordHash.Hash(plain)
}

func tokenPairFromFlow(out internalflows.TokenResult) *TokenPair {
	role, _ := permission.ParseRole(out.Identity.Role)
	return &TokenPair{
		AccessToken:      out.AccessToken,
		RefreshToken:     out.RefreshToken,
		AccessExpiresAt:  out.AccessExpiresAt,
		RefreshExpiresAt: out.RefreshExpiresAt,
		RememberMe:       out.RememberMe,
		Principal: Principal{
			UserID: out.Identity.UserID,
			Email:  out.Identity.Email,
			Role:   role,
		},
	}
}
