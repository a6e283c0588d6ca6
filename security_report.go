package careAuth

import "github.com/MrEthical07/careAuth/internal/security"

// SecurityReport is a secret-free summary of the engine configuration.
type SecurityReport = security.Report

// PasswordConfigReport mirrors the argon2id parameters in a [SecurityReport].
type PasswordConfigReport = security.PasswordReport

// SecurityReport describes the effective security posture. The server logs it
// once at startup.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	_, canRegister := e.credentials.(AccountCreator)

	return security.BuildReport(security.ReportInput{
		ProductionMode:       e.config.Security.ProductionMode,
		SigningAlgorithm:     "HS256",
		KeyID:                e.config.JWT.KeyID,
		VerifyKeyCount:       len(e.config.JWT.VerifyKeys),
		AccessTTL:            e.config.JWT.AccessTTL,
		RefreshTTL:           e.config.JWT.RefreshTTL,
		RememberMeRefreshTTL: e.config.JWT.RememberMeRefreshTTL,
		Password: security.PasswordReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		SecureCookies:           e.config.Cookies.Secure,
		LoginMaxAttempts:        e.config.RateLimit.LoginMaxAttempts,
		LoginWindow:             e.config.RateLimit.LoginWindow,
		RegistrationMaxAttempts: e.config.RateLimit.RegistrationMaxAttempts,
		RegistrationWindow:      e.config.RateLimit.RegistrationWindow,
		RegistrationEnabled:     e.config.Registration.Enabled && canRegister,
		AccountRecheckOnRefresh: e.config.Security.RecheckAccountOnRefresh,
		AuditEnabled:            e.config.Audit.Enabled,
	})
}
