package careAuth

import (
	"context"
	"time"

	internalflows "github.com/MrEthical07/careAuth/internal/flows"
	"github.com/MrEthical07/careAuth/password"
	"github.com/MrEthical07/careAuth/permission"
)

func (e *Engine) buildFlowDeps() internalflows.Deps {
	return internalflows.Deps{
		Login:          e.loginFlowDeps(),
		Refresh:        e.refreshFlowDeps(),
		Logout:         e.logoutFlowDeps(),
		Register:       e.registerFlowDeps(),
		Authenticate:   e.authenticateFlowDeps(),
		ChangePassword: e.changePasswordFlowDeps(),
	}
}

func (e *Engine) lifetimes() internalflows.TokenLifetimes {
	return internalflows.TokenLifetimes{
		Access:            e.config.JWT.AccessTTL,
		Refresh:           e.config.JWT.RefreshTTL,
		RememberMeRefresh: e.config.JWT.RememberMeRefreshTTL,
	}
}

func (e *Engine) accountStateErrors() internalflows.AccountStateErrors {
	return internalflows.AccountStateErrors{
		Deactivated: ErrAccountDeactivated,
		Pending:     ErrAccountPending,
		Rejected:    ErrAccountRejected,
	}
}

func (e *Engine) flowMetricInc(id int) {
	e.metricInc(MetricID(id))
}

func rateLimitedError(resetIn time.Duration) error {
	return &RateLimitError{ResetIn: resetIn}
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		Lifetimes:           e.lifetimes(),
		ClientIPFromContext: clientIPFromContext,
		Now:                 e.now,
		CheckLoginRate:      e.loginLimiter.Check,
		ResetLoginRate:      e.loginLimiter.Reset,
		RateLimitedError:    rateLimitedError,
		FindAccount:         e.findAccountByEmail,
		VerifyPassword:      e.credentials.VerifyPassword,
		DummyHash:           e.dummyHash,
		IssueToken:          e.jwtManager.Issue,
		StoreRefresh:        e.refresh.Store,
		MetricInc:           e.flowMetricInc,
		EmitAudit:           e.emitAudit,
		EmitRateLimit:       e.emitRateLimit,
		Warn:                e.warn,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:        int(MetricLoginSuccess),
			LoginFailure:        int(MetricLoginFailure),
			LoginRateLimited:    int(MetricLoginRateLimited),
			LoginAccountBlocked: int(MetricLoginAccountBlocked),
			PasswordUpgraded:    int(MetricPasswordUpgraded),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
			PasswordUpgraded: auditEventPasswordUpgraded,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			InvalidInput:       ErrInvalidInput,
			Internal:           ErrInternal,
			UserNotFound:       ErrUserNotFound,
			AccountState:       e.accountStateErrors(),
		},
	}
	if updater, ok := e.credentials.(PasswordUpdater); ok && e.config.Password.UpgradeOnLogin {
		deps.NeedsRehash = e.passwordHash.NeedsRehash
		deps.HashPassword = e.HashPassword
		deps.UpgradePassword = updater.UpdatePasswordHash
	}
	return deps
}

func (e *Engine) refreshFlowDeps() internalflows.RefreshDeps {
	deps := internalflows.RefreshDeps{
		Lifetimes:      e.lifetimes(),
		Now:            e.now,
		VerifyToken:    e.jwtManager.Verify,
		LookupRefresh:  e.refresh.Lookup,
		ConsumeRefresh: e.refresh.Consume,
		StoreRefresh:   e.refresh.Store,
		RevokeAll:      e.refresh.RevokeAll,
		IssueToken:     e.jwtManager.Issue,
		MetricInc:      e.flowMetricInc,
		EmitAudit:      e.emitAudit,
		Warn:           e.warn,
		Metrics: internalflows.RefreshMetrics{
			RefreshSuccess:       int(MetricRefreshSuccess),
			RefreshFailure:       int(MetricRefreshFailure),
			RefreshReuseDetected: int(MetricRefreshReuseDetected),
			RevokeAll:            int(MetricRevokeAll),
		},
		Events: internalflows.RefreshEvents{
			RefreshSuccess:       auditEventRefreshSuccess,
			RefreshInvalid:       auditEventRefreshInvalid,
			RefreshReuseDetected: auditEventRefreshReuseDetected,
		},
		Errors: internalflows.RefreshErrors{
			EngineNotReady:        ErrEngineNotReady,
			TokenExpiredOrInvalid: ErrTokenExpiredOrInvalid,
			TokenRevoked:          ErrTokenRevoked,
			Internal:              ErrInternal,
			UserNotFound:          ErrUserNotFound,
			AccountState:          e.accountStateErrors(),
		},
	}
	if lookup, ok := e.credentials.(AccountLookup); ok && e.config.Security.RecheckAccountOnRefresh {
		deps.FindAccountByID = func(ctx context.Context, userID string) (internalflows.Account, error) {
			return findFlowAccountByID(ctx, lookup, userID)
		}
	}
	return deps
}

func findFlowAccountByID(ctx context.Context, lookup AccountLookup, userID string) (internalflows.Account, error) {
	rec, err := lookup.FindByID(ctx, userID)
	if err != nil {
		return internalflows.Account{}, err
	}
	return flowAccount(rec), nil
}

func (e *Engine) logoutFlowDeps() internalflows.LogoutDeps {
	return internalflows.LogoutDeps{
		VerifyToken: e.jwtManager.Verify,
		Registry:    e.refresh,
		MetricInc:   e.flowMetricInc,
		EmitAudit:   e.emitAudit,
		Warn:        e.warn,
		Metrics: internalflows.LogoutMetrics{
			Logout:    int(MetricLogout),
			RevokeAll: int(MetricRevokeAll),
		},
		Events: internalflows.LogoutEvents{
			Logout:    auditEventLogout,
			LogoutAll: auditEventLogoutAll,
		},
		Errors: internalflows.LogoutErrors{
			EngineNotReady: ErrEngineNotReady,
			InvalidInput:   ErrInvalidInput,
			Internal:       ErrInternal,
		},
	}
}

func (e *Engine) registerFlowDeps() internalflows.RegisterDeps {
	deps := internalflows.RegisterDeps{
		Enabled:             e.config.Registration.Enabled,
		AllowedRoles:        append([]permission.Role(nil), e.config.Registration.AllowedRoles...),
		ClientIPFromContext: clientIPFromContext,
		EnforceRate:         e.regLimiter.Enforce,
		RateLimitedError:    rateLimitedError,
		CheckPassword:       password.CheckLength,
		HashPassword:        e.HashPassword,
		MetricInc:           e.flowMetricInc,
		EmitAudit:           e.emitAudit,
		EmitRateLimit:       e.emitRateLimit,
		Warn:                e.warn,
		Metrics: internalflows.RegisterMetrics{
			RegistrationSuccess:     int(MetricRegistrationSuccess),
			RegistrationDuplicate:   int(MetricRegistrationDuplicate),
			RegistrationRateLimited: int(MetricRegistrationRateLimited),
		},
		Events: internalflows.RegisterEvents{
			RegistrationSuccess:     auditEventRegistrationSuccess,
			RegistrationFailure:     auditEventRegistrationFailure,
			RegistrationDuplicate:   auditEventRegistrationDuplicate,
			RegistrationRateLimited: auditEventRegistrationRateLimited,
		},
		Errors: internalflows.RegisterErrors{
			EngineNotReady:       ErrEngineNotReady,
			RegistrationDisabled: ErrRegistrationDisabled,
			InvalidInput:         ErrInvalidInput,
			AccountExists:        ErrAccountExists,
			Internal:             ErrInternal,
		},
	}

	creator, ok := e.credentials.(AccountCreator)
	if !ok {
		deps.Enabled = false
		return deps
	}
	deps.CreateAccount = func(ctx context.Context, in internalflows.NewAccountInput) (internalflows.Account, error) {
		rec, err := creator.CreateAccount(ctx, NewAccount{
			Email:          in.Email,
			Name:           in.Name,
			Role:           in.Role,
			PasswordHash:   in.PasswordHash,
			ApprovalStatus: ApprovalStatus(in.ApprovalStatus),
		})
		if err != nil {
			return internalflows.Account{}, err
		}
		return flowAccount(rec), nil
	}
	return deps
}

func (e *Engine) changePasswordFlowDeps() internalflows.ChangePasswordDeps {
	deps := internalflows.ChangePasswordDeps{
		VerifyPassword: e.credentials.VerifyPassword,
		CheckPassword:  password.CheckLength,
		HashPassword:   e.HashPassword,
		RevokeAll:      e.refresh.RevokeAll,
		MetricInc:      e.flowMetricInc,
		EmitAudit:      e.emitAudit,
		Warn:           e.warn,
		Metrics: internalflows.ChangePasswordMetrics{
			PasswordChangeSuccess:    int(MetricPasswordChangeSuccess),
			PasswordChangeInvalidOld: int(MetricPasswordChangeInvalidOld),
		},
		Events: internalflows.ChangePasswordEvents{
			PasswordChangeSuccess: auditEventPasswordChangeSuccess,
			PasswordChangeFailure: auditEventPasswordChangeFailure,
		},
		Errors: internalflows.ChangePasswordErrors{
			EngineNotReady:     ErrEngineNotReady,
			Unsupported:        ErrPasswordChangeUnsupported,
			InvalidInput:       ErrInvalidInput,
			InvalidCredentials: ErrInvalidCredentials,
			PasswordReuse:      ErrPasswordReuse,
			UserNotFound:       ErrUserNotFound,
			Internal:           ErrInternal,
			AccountState:       e.accountStateErrors(),
		},
	}
	lookup, hasLookup := e.credentials.(AccountLookup)
	updater, hasUpdater := e.credentials.(PasswordUpdater)
	if hasLookup && hasUpdater {
		deps.FindAccountByID = func(ctx context.Context, userID string) (internalflows.Account, error) {
			return findFlowAccountByID(ctx, lookup, userID)
		}
		deps.UpdatePasswordHash = updater.UpdatePasswordHash
	}
	return deps
}

func (e *Engine) authenticateFlowDeps() internalflows.AuthenticateDeps {
	return internalflows.AuthenticateDeps{
		VerifyToken: e.jwtManager.Verify,
		ResolveRole: func(name string) bool {
			_, ok := permission.ParseRole(name)
			return ok
		},
		MetricInc: e.flowMetricInc,
		ObserveLatency: func(id int, d time.Duration) {
			if e.metrics != nil {
				e.metrics.Observe(MetricID(id), d)
			}
		},
		Metrics: internalflows.AuthenticateMetrics{
			AuthenticateFailure: int(MetricAuthenticateFailure),
			AuthenticateLatency: int(MetricAuthenticateLatency),
		},
		Errors: internalflows.AuthenticateErrors{
			EngineNotReady:         ErrEngineNotReady,
			AuthenticationRequired: ErrAuthenticationRequired,
			TokenExpiredOrInvalid:  ErrTokenExpiredOrInvalid,
		},
	}
}

func (e *Engine) findAccountByEmail(ctx context.Context, email string) (internalflows.Account, error) {
	rec, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		return internalflows.Account{}, err
	}
	return flowAccount(rec), nil
}

func flowAccount(rec CredentialRecord) internalflows.Account {
	return internalflows.Account{
		UserID:         rec.UserID,
		Email:          rec.Email,
		Role:           rec.Role,
		PasswordHash:   rec.PasswordHash,
		IsActive:       rec.IsActive,
		ApprovalStatus: string(rec.ApprovalStatus),
	}
}
