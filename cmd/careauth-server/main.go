// Command careauth-server runs the care platform's authentication API.
//
// Configuration comes from CAREAUTH_* environment variables, optionally
// loaded from a .env file. Postgres holds accounts. Refresh records and rate
// limit counters live in Redis when CAREAUTH_REDIS_ADDR is set and in Postgres
// and process memory otherwise.
//
//	CAREAUTH_JWT_SECRET=... CAREAUTH_DATABASE_URL=postgres://... careauth-server -migrate
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	careAuth "github.com/MrEthical07/careAuth"
	"github.com/MrEthical07/careAuth/credentials"
	"github.com/MrEthical07/careAuth/httpauth"
	prometheusexport "github.com/MrEthical07/careAuth/metrics/export/prometheus"
	"github.com/MrEthical07/careAuth/middleware"
	"github.com/MrEthical07/careAuth/password"
	"github.com/MrEthical07/careAuth/permission"
	"github.com/MrEthical07/careAuth/refresh"
	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type serverConfig struct {
	Addr            string        `env:"ADDR"             envDefault:":8080"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RoutesFile      string        `env:"ROUTES_FILE"`
	LogFormat       string        `env:"LOG_FORMAT"       envDefault:"json"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL"   envDefault:"1h"`
}

func main() {
	migrate := flag.Bool("migrate", false, "create tables before serving")
	flag.Parse()

	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	var sc serverConfig
	if err := env.ParseWithOptions(&sc, env.Options{Prefix: careAuth.EnvPrefix}); err != nil {
		fmt.Fprintf(os.Stderr, "careauth-server: %v\n", err)
		os.Exit(2)
	}
	logger := newLogger(sc.LogFormat, sc.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, sc, *migrate, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, sc serverConfig, migrate bool, logger *slog.Logger) error {
	cfg, err := careAuth.ConfigFromEnv()
	if err != nil {
		return err
	}

	db, err := credentials.Open(ctx, sc.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	hasher, err := password.NewHasher(cfg.Password.Hasher())
	if err != nil {
		return err
	}
	accounts := credentials.NewSQLStore(db, hasher)

	builder := careAuth.New().
		WithConfig(cfg).
		WithCredentialStore(accounts).
		WithLogger(logger)

	var sweeper *refresh.PostgresStore
	if sc.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: sc.RedisAddr, Password: sc.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		builder = builder.WithRedis(rdb)
	} else {
		sweeper = refresh.NewPostgresStore(db)
		builder = builder.WithRefreshStore(sweeper)
		logger.Warn("no redis configured, rate limits are per process")
	}

	if migrate {
		if err := accounts.Migrate(ctx); err != nil {
			return err
		}
		if err := refresh.NewPostgresStore(db).Migrate(ctx); err != nil {
			return err
		}
		logger.Info("schema migrated")
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("security posture",
		"production", report.ProductionMode,
		"algorithm", report.SigningAlgorithm,
		"access_ttl", report.AccessTTL,
		"refresh_ttl", report.RefreshTTL,
		"login_limit", report.LoginRateLimit,
		"registration", report.RegistrationEnabled,
	)
	for _, w := range report.Warnings {
		logger.Warn("security warning", "detail", w)
	}

	rules, err := loadRules(sc.RoutesFile)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              sc.Addr,
		Handler:           newRouter(engine, rules, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", sc.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if sweeper != nil {
		g.Go(func() error {
			sweepExpired(gctx, sweeper, sc.SweepInterval, logger)
			return nil
		})
	}
	return g.Wait()
}

func newRouter(engine *careAuth.Engine, rules middleware.RuleSet, logger *slog.Logger) http.Handler {
	cookies := engine.Config().Cookies
	auth := &httpauth.Handlers{Svc: engine, Cookies: cookies, Logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Gate(engine, middleware.GateConfig{
		Rules:   rules,
		Cookies: cookies,
		Logger:  logger,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/api/metrics", prometheusexport.NewPrometheusExporter(engine).Handler())
	r.Mount("/api/auth", auth.Routes())
	return r
}

// loadRules falls back to a rule set that keeps the auth endpoints public,
// limits metrics to super admins and protects everything else under /api/.
func loadRules(path string) (middleware.RuleSet, error) {
	if path != "" {
		return middleware.LoadRulesFile(path)
	}
	return middleware.RuleSet{
		ProtectedAreas: []string{"/api/"},
		Routes: []middleware.RouteRule{
			{PathPrefix: "/api/auth/login", Public: true},
			{PathPrefix: "/api/auth/refresh", Public: true},
			{PathPrefix: "/api/auth/logout", Public: true},
			{PathPrefix: "/api/auth/register", Public: true},
			{PathPrefix: "/healthz", Public: true},
			{PathPrefix: "/api/metrics", Roles: []permission.Role{permission.RoleSuperAdmin}},
		},
	}, nil
}

func sweepExpired(ctx context.Context, store *refresh.PostgresStore, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.DeleteExpired(ctx, now)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("refresh sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("refresh sweep", "deleted", n)
			}
		}
	}
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
