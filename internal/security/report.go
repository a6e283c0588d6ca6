package security

import (
	"strconv"
	"time"
)

// PasswordReport mirrors the argon2id cost parameters in effect.
type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report summarizes the security posture of a configured engine. It holds no
// secret material and is safe to log.
type Report struct {
	ProductionMode          bool
	SigningAlgorithm        string
	KeyRotationActive       bool
	AccessTTL               time.Duration
	RefreshTTL              time.Duration
	RememberMeRefreshTTL    time.Duration
	Argon2                  PasswordReport
	SecureCookies           bool
	LoginRateLimit          string
	RegistrationRateLimit   string
	RegistrationEnabled     bool
	AccountRecheckOnRefresh bool
	AuditEnabled            bool
	Warnings                []string
}

type ReportInput struct {
	ProductionMode          bool
	SigningAlgorithm        string
	KeyID                   string
	VerifyKeyCount          int
	AccessTTL               time.Duration
	RefreshTTL              time.Duration
	RememberMeRefreshTTL    time.Duration
	Password                PasswordReport
	SecureCookies           bool
	LoginMaxAttempts        int
	LoginWindow             time.Duration
	RegistrationMaxAttempts int
	RegistrationWindow      time.Duration
	RegistrationEnabled     bool
	AccountRecheckOnRefresh bool
	AuditEnabled            bool
}

// BuildReport derives a [Report] from input. Warnings flag settings that are
// accepted outside production mode but would be rejected in it.
func BuildReport(input ReportInput) Report {
	r := Report{
		ProductionMode:          input.ProductionMode,
		SigningAlgorithm:        input.SigningAlgorithm,
		KeyRotationActive:       input.KeyID != "" && input.VerifyKeyCount > 0,
		AccessTTL:               input.AccessTTL,
		RefreshTTL:              input.RefreshTTL,
		RememberMeRefreshTTL:    input.RememberMeRefreshTTL,
		Argon2:                  input.Password,
		SecureCookies:           input.SecureCookies,
		LoginRateLimit:          describeLimit(input.LoginMaxAttempts, input.LoginWindow),
		RegistrationRateLimit:   describeLimit(input.RegistrationMaxAttempts, input.RegistrationWindow),
		RegistrationEnabled:     input.RegistrationEnabled,
		AccountRecheckOnRefresh: input.AccountRecheckOnRefresh,
		AuditEnabled:            input.AuditEnabled,
	}

	if !input.SecureCookies {
		r.Warnings = append(r.Warnings, "cookies are sent without the Secure flag")
	}
	if input.AccessTTL > 15*time.Minute {
		r.Warnings = append(r.Warnings, "access tokens live longer than 15m")
	}
	if input.Password.Memory < 64*1024 {
		r.Warnings = append(r.Warnings, "argon2 memory is below 64 MiB")
	}
	if !input.AuditEnabled {
		r.Warnings = append(r.Warnings, "audit events are disabled")
	}
	return r
}

func describeLimit(attempts int, window time.Duration) string {
	if attempts <= 0 || window <= 0 {
		return "off"
	}
	return strconv.Itoa(attempts) + "/" + window.String()
}
