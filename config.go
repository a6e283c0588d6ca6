package careAuth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/careAuth/jwt"
	"github.com/MrEthical07/careAuth/password"
	"github.com/MrEthical07/careAuth/permission"
	"github.com/MrEthical07/careAuth/session"
)

// ErrSigningSecretRequired is returned by [Config.Validate] when no usable
// signing secret is configured. The engine refuses to start without one.
var ErrSigningSecretRequired = fmt.Errorf("jwt signing secret of at least %d bytes is required", jwt.MinSecretBytes)

// Config is the complete engine configuration. Start from [DefaultConfig],
// override fields, and pass the result to [Builder.WithConfig]. The engine
// keeps its own copy after Build.
type Config struct {
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	Registration RegistrationConfig
	Cookies      session.Policy
	Audit        AuditConfig
	Metrics      MetricsConfig
	Security     SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing and lifetimes.
//
// RememberMeRefreshTTL replaces RefreshTTL for logins that asked to be
// remembered. Rotation keeps whichever lifetime the presented token had.
type JWTConfig struct {
	Secret               []byte
	Issuer               string
	Audience             string
	Leeway               time.Duration
	MaxFutureIAT         time.Duration
	KeyID                string
	VerifyKeys           map[string][]byte
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	RememberMeRefreshTTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters for newly hashed passwords.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// UpgradeOnLogin rehashes a stored hash with weaker parameters after a
	// successful login when the store implements [PasswordUpdater].
	UpgradeOnLogin bool
}

// Hasher returns the parameters in the form [password.NewHasher] accepts.
func (c PasswordConfig) Hasher() password.Config {
	return password.Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig sets the fixed-window budgets of the credential endpoints.
// Login attempts are keyed by (ip, email); registrations by ip.
type RateLimitConfig struct {
	LoginMaxAttempts        int
	LoginWindow             time.Duration
	RegistrationMaxAttempts int
	RegistrationWindow      time.Duration
}

// RegistrationConfig controls self-service account creation.
type RegistrationConfig struct {
	Enabled      bool
	AllowedRoles []permission.Role
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig groups deployment-wide switches.
//
// RecheckAccountOnRefresh makes refresh rotation re-read the account through
// [AccountLookup] when the credential store implements it.
type SecurityConfig struct {
	ProductionMode          bool
	RecheckAccountOnRefresh bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the development defaults. The signing secret is left
// empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			MaxFutureIAT:         10 * time.Minute,
			AccessTTL:            15 * time.Minute,
			RefreshTTL:           7 * 24 * time.Hour,
			RememberMeRefreshTTL: 30 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		RateLimit: RateLimitConfig{
			LoginMaxAttempts:        5,
			LoginWindow:             15 * time.Minute,
			RegistrationMaxAttempts: 3,
			RegistrationWindow:      time.Hour,
		},
		Registration: RegistrationConfig{
			Enabled: true,
			AllowedRoles: []permission.Role{
				permission.RoleElderly,
				permission.RoleFamily,
				permission.RoleVolunteer,
				permission.RoleProfessional,
			},
		},
		Cookies: session.DefaultPolicy(false),
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode:          false,
			RecheckAccountOnRefresh: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	out.Registration.AllowedRoles = append([]permission.Role(nil), cfg.Registration.AllowedRoles...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration and fails closed: a missing or short
// signing secret returns [ErrSigningSecretRequired].
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < jwt.MinSecretBytes {
		return ErrSigningSecretRequired
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RememberMeRefreshTTL < c.JWT.RefreshTTL {
		return errors.New("JWT RememberMeRefreshTTL must be >= RefreshTTL")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Rate limits
	if c.RateLimit.LoginMaxAttempts <= 0 || c.RateLimit.LoginWindow <= 0 {
		return errors.New("RateLimit login policy must be > 0")
	}
	if c.RateLimit.RegistrationMaxAttempts <= 0 || c.RateLimit.RegistrationWindow <= 0 {
		return errors.New("RateLimit registration policy must be > 0")
	}

	// Registration
	if c.Registration.Enabled {
		if len(c.Registration.AllowedRoles) == 0 {
			return errors.New("Registration AllowedRoles is required when registration is enabled")
		}
		for _, role := range c.Registration.AllowedRoles {
			if !role.Valid() {
				return fmt.Errorf("Registration AllowedRoles contains unknown role %d", int(role))
			}
			if role == permission.RoleSuperAdmin {
				return errors.New("Registration cannot allow super_admin")
			}
		}
	}

	// Cookies
	if err := c.Cookies.Validate(); err != nil {
		return fmt.Errorf("Cookies: %w", err)
	}
	if c.Cookies.AccessMaxAge > int(c.JWT.RefreshTTL/time.Second) {
		return errors.New("Cookies AccessMaxAge must not outlive the refresh token")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if !c.Cookies.Secure {
			return errors.New("ProductionMode requires Secure cookies")
		}
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires JWT AccessTTL <= 15m")
		}
		if c.JWT.RememberMeRefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RememberMeRefreshTTL <= 30d")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
	}

	return nil
}
