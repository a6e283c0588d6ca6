package careAuth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/careAuth/internal/audit"
	"github.com/MrEthical07/careAuth/internal/limiters"
	"github.com/MrEthical07/careAuth/internal/rate"
	"github.com/MrEthical07/careAuth/jwt"
	"github.com/MrEthical07/careAuth/password"
	"github.com/MrEthical07/careAuth/refresh"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitStore counts attempts inside fixed windows. Incr must be atomic
// per key.
type RateLimitStore = rate.Store

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials  CredentialStore
	refreshStore refresh.Store
	rateStore    RateLimitStore
	auditSink    AuditSink
	logger       *slog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis makes Redis the default backend for the rate limiter and the
// refresh registry. Explicit stores set with WithRefreshStore or
// WithRateLimitStore take precedence.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the account collaborator. It is required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

func (b *Builder) WithRefreshStore(store refresh.Store) *Builder {
	b.refreshStore = store
	return b
}

func (b *Builder) WithRateLimitStore(store RateLimitStore) *Builder {
	b.rateStore = store
	return b
}

// WithAuditSink sets the audit destination. When audit is enabled and no
// sink is set, events are logged through the engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the clock used for token timestamps, registry expiry
// and rate-limit windows.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. It fails closed
// with [ErrSigningSecretRequired] when no signing secret is configured.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- TOKEN CODEC --------
	jm, err := jwt.NewManager(jwt.Config{
		Secret:       cloneBytes(cfg.JWT.Secret),
		Issuer:       cfg.JWT.Issuer,
		Audience:     cfg.JWT.Audience,
		Leeway:       cfg.JWT.Leeway,
		MaxFutureIAT: cfg.JWT.MaxFutureIAT,
		KeyID:        cfg.JWT.KeyID,
		VerifyKeys:   cfg.JWT.VerifyKeys,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHER --------
	ph, err := password.NewHasher(cfg.Password.Hasher())
	if err != nil {
		return nil, err
	}
	dummyHash, err := ph.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("derive dummy hash: %w", err)
	}

	// -------- STORES --------
	refreshStore := b.refreshStore
	rateStore := b.rateStore
	if b.redis != nil {
		if refreshStore == nil {
			refreshStore = refresh.NewRedisStore(b.redis, "careauth:rt")
		}
		if rateStore == nil {
			rateStore = rate.NewRedisStore(b.redis, "careauth:rl:")
		}
	}
	if refreshStore == nil {
		refreshStore = refresh.NewMemoryStore(now)
	}
	if rateStore == nil {
		rateStore = rate.NewMemoryStore(now)
	}
	limiter := rate.New(rateStore)

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil {
		sink = NewSlogSink(logger)
	}

	engine := &Engine{
		config:       cfg,
		jwtManager:   jm,
		refresh:      refresh.NewRegistry(refreshStore, now),
		passwordHash: ph,
		credentials:  b.credentials,
		logger:       logger,
		now:          now,
		dummyHash:    dummyHash,
		loginLimiter: limiters.NewLoginLimiter(limiter, limiters.Policy{
			MaxAttempts: cfg.RateLimit.LoginMaxAttempts,
			Window:      cfg.RateLimit.LoginWindow,
		}),
		regLimiter: limiters.NewRegistrationLimiter(limiter, limiters.Policy{
			MaxAttempts: cfg.RateLimit.RegistrationMaxAttempts,
			Window:      cfg.RateLimit.RegistrationWindow,
		}),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Now:        now,
		}, sink),
		metrics: NewMetrics(cfg.Metrics),
	}
	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
