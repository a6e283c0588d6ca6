package flows

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/MrEthical07/careAuth/internal/rate"
	"github.com/MrEthical07/careAuth/permission"
)

// RegisterInput is the normalized registration request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     permission.Role
}

// NewAccountInput is handed to the account creator.
type NewAccountInput struct {
	Email          string
	Name           string
	Role           permission.Role
	PasswordHash   string
	ApprovalStatus string
}

type RegisterMetrics struct {
	RegistrationSuccess     int
	RegistrationDuplicate   int
	RegistrationRateLimited int
}

type RegisterEvents struct {
	RegistrationSuccess     string
	RegistrationFailure     string
	RegistrationDuplicate   string
	RegistrationRateLimited string
}

type RegisterErrors struct {
	EngineNotReady       error
	RegistrationDisabled error
	InvalidInput         error
	AccountExists        error
	Internal             error
}

// RegisterDeps captures self-service registration dependencies.
type RegisterDeps struct {
	Enabled      bool
	AllowedRoles []permission.Role

	ClientIPFromContext func(context.Context) string

	EnforceRate      func(context.Context, string) (rate.Decision, error)
	RateLimitedError func(time.Duration) error

	CheckPassword func(string) error
	HashPassword  func(string) (string, error)
	CreateAccount func(context.Context, NewAccountInput) (Account, error)

	MetricInc     func(int)
	EmitAudit     func(context.Context, string, bool, string, string, error, func() map[string]string)
	EmitRateLimit func(context.Context, string, func() map[string]string)
	Warn          func(string, ...any)

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister creates a pending account. The attempt is counted against the
// caller's IP before the input is inspected.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) (Account, error) {
	normalizeRegisterDeps(&deps)

	if !deps.Enabled {
		return Account{}, deps.Errors.RegistrationDisabled
	}
	if deps.EnforceRate == nil || deps.HashPassword == nil || deps.CreateAccount == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)
	decision, err := deps.EnforceRate(ctx, ip)
	if err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			limited := deps.RateLimitedError(decision.ResetIn)
			deps.MetricInc(deps.Metrics.RegistrationRateLimited)
			deps.EmitAudit(ctx, deps.Events.RegistrationRateLimited, false, "", in.Email, limited, nil)
			deps.EmitRateLimit(ctx, "registration", nil)
			return Account{}, limited
		}
		deps.Warn("careauth: registration limiter unavailable", "error", err.Error())
		return Account{}, deps.Errors.Internal
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if reason := validateRegistration(in, deps); reason != "" {
		deps.EmitAudit(ctx, deps.Events.RegistrationFailure, false, "", in.Email, deps.Errors.InvalidInput, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return Account{}, deps.Errors.InvalidInput
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		deps.Warn("careauth: password hashing failed", "error", err.Error())
		return Account{}, deps.Errors.Internal
	}

	acc, err := deps.CreateAccount(ctx, NewAccountInput{
		Email:          in.Email,
		Name:           in.Name,
		Role:           in.Role,
		PasswordHash:   hash,
		ApprovalStatus: ApprovalPending,
	})
	if err != nil {
		if errors.Is(err, deps.Errors.AccountExists) {
			deps.MetricInc(deps.Metrics.RegistrationDuplicate)
			deps.EmitAudit(ctx, deps.Events.RegistrationDuplicate, false, "", in.Email, deps.Errors.AccountExists, nil)
			return Account{}, deps.Errors.AccountExists
		}
		deps.Warn("careauth: account creation failed", "error", err.Error())
		deps.EmitAudit(ctx, deps.Events.RegistrationFailure, false, "", in.Email, deps.Errors.Internal, func() map[string]string {
			return map[string]string{
				"reason": "create_failed",
			}
		})
		return Account{}, deps.Errors.Internal
	}

	deps.MetricInc(deps.Metrics.RegistrationSuccess)
	deps.EmitAudit(ctx, deps.Events.RegistrationSuccess, true, acc.UserID, acc.Email, nil, func() map[string]string {
		return map[string]string{
			"role": acc.Role.String(),
		}
	})
	return acc, nil
}

func validateRegistration(in RegisterInput, deps RegisterDeps) string {
	if in.Email == "" || in.Name == "" {
		return "missing_fields"
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return "invalid_email"
	}
	if !permission.HasAnyRole(in.Role, deps.AllowedRoles) || in.Role == permission.RoleSuperAdmin {
		return "role_not_allowed"
	}
	if deps.CheckPassword != nil {
		if err := deps.CheckPassword(in.Password); err != nil {
			return "password_policy"
		}
	}
	return ""
}

func normalizeRegisterDeps(deps *RegisterDeps) {
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
