package flows

import (
	"context"
	"errors"
	"strconv"
)

type ChangePasswordMetrics struct {
	PasswordChangeSuccess    int
	PasswordChangeInvalidOld int
}

type ChangePasswordEvents struct {
	PasswordChangeSuccess string
	PasswordChangeFailure string
}

type ChangePasswordErrors struct {
	EngineNotReady     error
	Unsupported        error
	InvalidInput       error
	InvalidCredentials error
	PasswordReuse      error
	UserNotFound       error
	Internal           error
	AccountState       AccountStateErrors
}

// ChangePasswordDeps captures password change dependencies. FindAccountByID
// and UpdatePasswordHash are nil when the credential store cannot support the
// operation.
type ChangePasswordDeps struct {
	FindAccountByID    func(context.Context, string) (Account, error)
	VerifyPassword     func(string, string) (bool, error)
	CheckPassword      func(string) error
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(context.Context, string, string) error
	RevokeAll          func(context.Context, string) (int, error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)
	Warn      func(string, ...any)

	Metrics ChangePasswordMetrics
	Events  ChangePasswordEvents
	Errors  ChangePasswordErrors
}

// RunChangePassword verifies oldPassword, stores a hash of newPassword and
// revokes every refresh token of the user so other devices must log in again.
func RunChangePassword(ctx context.Context, userID, oldPassword, newPassword string, deps ChangePasswordDeps) error {
	normalizeChangePasswordDeps(&deps)

	if deps.FindAccountByID == nil || deps.UpdatePasswordHash == nil {
		return deps.Errors.Unsupported
	}
	if deps.VerifyPassword == nil || deps.HashPassword == nil || deps.RevokeAll == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(email string, err error, reason string) error {
		deps.EmitAudit(ctx, deps.Events.PasswordChangeFailure, false, userID, email, err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return err
	}

	if userID == "" || oldPassword == "" || newPassword == "" {
		return fail("", deps.Errors.InvalidInput, "invalid_input")
	}

	acc, err := deps.FindAccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return fail("", deps.Errors.UserNotFound, "user_not_found")
		}
		deps.Warn("careauth: account lookup failed", "user_id", userID, "error", err.Error())
		return fail("", deps.Errors.Internal, "credential_store")
	}
	if stateErr := accountStateError(acc, deps.Errors.AccountState); stateErr != nil {
		return fail(acc.Email, stateErr, "account_state")
	}

	if ok, err := deps.VerifyPassword(oldPassword, acc.PasswordHash); err != nil || !ok {
		deps.MetricInc(deps.Metrics.PasswordChangeInvalidOld)
		return fail(acc.Email, deps.Errors.InvalidCredentials, "invalid_old_password")
	}
	if deps.CheckPassword != nil {
		if err := deps.CheckPassword(newPassword); err != nil {
			return fail(acc.Email, deps.Errors.InvalidInput, "password_policy")
		}
	}
	if same, err := deps.VerifyPassword(newPassword, acc.PasswordHash); err == nil && same {
		return fail(acc.Email, deps.Errors.PasswordReuse, "password_reuse")
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		deps.Warn("careauth: password hashing failed", "error", err.Error())
		return fail(acc.Email, deps.Errors.Internal, "hash_failed")
	}
	if err := deps.UpdatePasswordHash(ctx, acc.UserID, hash); err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return fail(acc.Email, deps.Errors.UserNotFound, "user_not_found")
		}
		deps.Warn("careauth: password hash update failed", "user_id", acc.UserID, "error", err.Error())
		return fail(acc.Email, deps.Errors.Internal, "update_failed")
	}

	revoked, err := deps.RevokeAll(ctx, acc.UserID)
	if err != nil {
		deps.Warn("careauth: session revocation after password change failed", "user_id", acc.UserID, "error", err.Error())
		return fail(acc.Email, deps.Errors.Internal, "session_revocation_failed")
	}

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordChangeSuccess, true, acc.UserID, acc.Email, nil, func() map[string]string {
		return map[string]string{
			"revoked": strconv.Itoa(revoked),
		}
	})
	return nil
}

func normalizeChangePasswordDeps(deps *ChangePasswordDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
}
