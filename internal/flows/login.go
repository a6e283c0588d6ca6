package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/careAuth/internal/rate"
	"github.com/MrEthical07/careAuth/jwt"
)

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess        int
	LoginFailure        int
	LoginRateLimited    int
	LoginAccountBlocked int
	PasswordUpgraded    int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
	PasswordUpgraded string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	InvalidInput       error
	Internal           error
	UserNotFound       error
	AccountState       AccountStateErrors
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Lifetimes TokenLifetimes

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	CheckLoginRate   func(context.Context, string, string) (rate.Decision, error)
	ResetLoginRate   func(context.Context, string, string) error
	RateLimitedError func(time.Duration) error

	FindAccount    func(context.Context, string) (Account, error)
	VerifyPassword func(string, string) (bool, error)
	// DummyHash is verified against when the account does not exist so both
	// failure paths cost one password hash.
	DummyHash string

	// NeedsRehash, HashPassword and UpgradePassword are optional. When all
	// three are set a hash with outdated parameters is replaced after the
	// password verifies.
	NeedsRehash     func(string) bool
	HashPassword    func(string) (string, error)
	UpgradePassword func(context.Context, string, string) error

	IssueToken   func(jwt.Kind, jwt.Identity, time.Duration) (string, error)
	StoreRefresh func(context.Context, string, string, time.Time) error

	MetricInc     func(int)
	EmitAudit     func(context.Context, string, bool, string, string, error, func() map[string]string)
	EmitRateLimit func(context.Context, string, func() map[string]string)
	Warn          func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin checks the limiter, verifies credentials and account state, then
// issues and registers a token pair.
func RunLogin(ctx context.Context, email, password string, rememberMe bool, deps LoginDeps) (TokenResult, error) {
	normalizeLoginDeps(&deps)

	if deps.CheckLoginRate == nil || deps.FindAccount == nil || deps.VerifyPassword == nil ||
		deps.IssueToken == nil || deps.StoreRefresh == nil {
		return TokenResult{}, deps.Errors.EngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", email, deps.Errors.InvalidInput, func() map[string]string {
			return map[string]string{
				"reason": "empty_credentials",
			}
		})
		return TokenResult{}, deps.Errors.InvalidCredentials
	}

	ip := deps.ClientIPFromContext(ctx)
	decision, err := deps.CheckLoginRate(ctx, ip, email)
	if err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			limited := deps.RateLimitedError(decision.ResetIn)
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", email, limited, nil)
			deps.EmitRateLimit(ctx, "login", func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return TokenResult{}, limited
		}
		deps.Warn("careauth: login limiter unavailable", "error", err.Error())
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", email, deps.Errors.Internal, func() map[string]string {
			return map[string]string{
				"reason": "limiter_unavailable",
			}
		})
		return TokenResult{}, deps.Errors.Internal
	}

	acc, err := deps.FindAccount(ctx, email)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return TokenResult{}, err
		}
		if !errors.Is(err, deps.Errors.UserNotFound) {
			deps.Warn("careauth: credential lookup failed", "error", err.Error())
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", email, deps.Errors.Internal, func() map[string]string {
				return map[string]string{
					"reason": "credential_store",
				}
			})
			return TokenResult{}, deps.Errors.Internal
		}
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(password, deps.DummyHash)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", email, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "unknown_account",
			}
		})
		return TokenResult{}, deps.Errors.InvalidCredentials
	}

	ok, err := deps.VerifyPassword(password, acc.PasswordHash)
	if err != nil || !ok {
		reason := "password_mismatch"
		if err != nil {
			reason = "password_hash_unreadable"
			deps.Warn("careauth: stored password hash rejected", "user_id", acc.UserID, "error", err.Error())
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, acc.UserID, email, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return TokenResult{}, deps.Errors.InvalidCredentials
	}
	upgradePassword(ctx, acc, password, deps)

	if stateErr := accountStateError(acc, deps.Errors.AccountState); stateErr != nil {
		deps.MetricInc(deps.Metrics.LoginAccountBlocked)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, acc.UserID, email, stateErr, func() map[string]string {
			return map[string]string{
				"reason":          "account_state",
				"approval_status": acc.ApprovalStatus,
			}
		})
		return TokenResult{}, stateErr
	}

	tokens, stage, err := issuePair(ctx, identityOf(acc), rememberMe, deps.Lifetimes, deps.Now(), deps.IssueToken, deps.StoreRefresh)
	if err != nil {
		deps.Warn("careauth: token issuance failed", "stage", stage, "error", err.Error())
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, acc.UserID, email, deps.Errors.Internal, func() map[string]string {
			return map[string]string{
				"reason": stage,
			}
		})
		return TokenResult{}, deps.Errors.Internal
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, ip, email); err != nil {
			deps.Warn("careauth: login limiter reset failed", "error", err.Error())
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, acc.UserID, acc.Email, nil, func() map[string]string {
		if !rememberMe {
			return nil
		}
		return map[string]string{
			"remember_me": "true",
		}
	})

	return tokens, nil
}

// upgradePassword is best-effort: a failure is logged and the login proceeds.
func upgradePassword(ctx context.Context, acc Account, password string, deps LoginDeps) {
	if deps.NeedsRehash == nil || deps.HashPassword == nil || deps.UpgradePassword == nil {
		return
	}
	if !deps.NeedsRehash(acc.PasswordHash) {
		return
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("careauth: password upgrade hashing failed", "user_id", acc.UserID, "error", err.Error())
		return
	}
	if err := deps.UpgradePassword(ctx, acc.UserID, hash); err != nil {
		deps.Warn("careauth: password upgrade update failed", "user_id", acc.UserID, "error", err.Error())
		return
	}
	deps.MetricInc(deps.Metrics.PasswordUpgraded)
	deps.EmitAudit(ctx, deps.Events.PasswordUpgraded, true, acc.UserID, acc.Email, nil, nil)
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.RateLimitedError == nil {
		deps.RateLimitedError = func(time.Duration) error { return rate.ErrRateLimited }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.EmitRateLimit == nil {
		deps.EmitRateLimit = func(context.Context, string, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
}
