package careAuth

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every variable read by [ConfigFromEnv].
const EnvPrefix = "CAREAUTH_"

type envConfig struct {
	JWTSecret            string        `env:"JWT_SECRET"`
	JWTIssuer            string        `env:"JWT_ISSUER"              envDefault:"careauth"`
	JWTAudience          string        `env:"JWT_AUDIENCE"`
	AccessTTL            time.Duration `env:"ACCESS_TTL"              envDefault:"15m"`
	RefreshTTL           time.Duration `env:"REFRESH_TTL"             envDefault:"168h"`
	RememberMeRefreshTTL time.Duration `env:"REMEMBER_ME_TTL"         envDefault:"720h"`
	ProductionMode       bool          `env:"PRODUCTION"              envDefault:"false"`
	CookieDomain         string        `env:"COOKIE_DOMAIN"`
	LoginMaxAttempts     int           `env:"LOGIN_MAX_ATTEMPTS"      envDefault:"5"`
	LoginWindow          time.Duration `env:"LOGIN_WINDOW"            envDefault:"15m"`
	RegisterMaxAttempts  int           `env:"REGISTER_MAX_ATTEMPTS"   envDefault:"3"`
	RegisterWindow       time.Duration `env:"REGISTER_WINDOW"         envDefault:"1h"`
	RegistrationEnabled  bool          `env:"REGISTRATION_ENABLED"    envDefault:"true"`
	AuditEnabled         bool          `env:"AUDIT_ENABLED"           envDefault:"true"`
	AuditBufferSize      int           `env:"AUDIT_BUFFER_SIZE"       envDefault:"1024"`
	MetricsEnabled       bool          `env:"METRICS_ENABLED"         envDefault:"true"`
	LatencyHistograms    bool          `env:"METRICS_LATENCY"         envDefault:"false"`
	PasswordUpgrade      bool          `env:"PASSWORD_UPGRADE"        envDefault:"true"`
}

// ConfigFromEnv builds a validated [Config] from CAREAUTH_* environment
// variables on top of [DefaultConfig]. A missing CAREAUTH_JWT_SECRET yields
// [ErrSigningSecretRequired].
func ConfigFromEnv() (Config, error) {
	var raw envConfig
	if err := env.ParseWithOptions(&raw, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg := defaultConfig()
	cfg.JWT.Secret = []byte(raw.JWTSecret)
	cfg.JWT.Issuer = raw.JWTIssuer
	cfg.JWT.Audience = raw.JWTAudience
	cfg.JWT.AccessTTL = raw.AccessTTL
	cfg.JWT.RefreshTTL = raw.RefreshTTL
	cfg.JWT.RememberMeRefreshTTL = raw.RememberMeRefreshTTL

	cfg.Security.ProductionMode = raw.ProductionMode
	cfg.Cookies.Secure = raw.ProductionMode
	cfg.Cookies.Domain = raw.CookieDomain

	cfg.RateLimit.LoginMaxAttempts = raw.LoginMaxAttempts
	cfg.RateLimit.LoginWindow = raw.LoginWindow
	cfg.RateLimit.RegistrationMaxAttempts = raw.RegisterMaxAttempts
	cfg.RateLimit.RegistrationWindow = raw.RegisterWindow
	cfg.Registration.Enabled = raw.RegistrationEnabled
	cfg.Password.UpgradeOnLogin = raw.PasswordUpgrade

	cfg.Audit.Enabled = raw.AuditEnabled
	cfg.Audit.BufferSize = raw.AuditBufferSize
	cfg.Metrics.Enabled = raw.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = raw.LatencyHistograms

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
