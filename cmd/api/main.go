// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carterperez-dev/course-portal/internal/admin"
	"github.com/carterperez-dev/course-portal/internal/auth"
	"github.com/carterperez-dev/course-portal/internal/catalog"
	"github.com/carterperez-dev/course-portal/internal/config"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/entitlement"
	"github.com/carterperez-dev/course-portal/internal/events"
	"github.com/carterperez-dev/course-portal/internal/health"
	"github.com/carterperez-dev/course-portal/internal/middleware"
	"github.com/carterperez-dev/course-portal/internal/profile"
	"github.com/carterperez-dev/course-portal/internal/progress"
	"github.com/carterperez-dev/course-portal/internal/server"
	"github.com/carterperez-dev/course-portal/internal/video"
	"github.com/carterperez-dev/course-portal/migrations"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	genKeys := flag.Bool("genkeys", false, "generate an ES256 key pair at the configured paths and exit")
	migrate := flag.Bool("migrate", false, "apply pending schema migrations before serving")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	if *genKeys {
		if err := generateKeys(*configPath); err != nil {
			slog.Error("key generation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *migrate); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func generateKeys(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := auth.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath); err != nil {
		return err
	}

	slog.Info("key pair written",
		"private_key", cfg.JWT.PrivateKeyPath,
		"public_key", cfg.JWT.PublicKeyPath,
	)
	return nil
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string, migrate bool) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded",
		"products", len(cat.Products()),
		"videos", len(cat.Videos()),
	)

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if migrate {
		applied, err := core.Migrate(ctx, db.DB, migrations.FS)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", "count", len(applied), "versions", applied)
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	var (
		publisher events.Publisher = events.Nop{}
		broker    *events.RabbitMQ
	)
	if cfg.Broker.Enabled {
		broker, err = events.NewRabbitMQ(cfg.Broker)
		if err != nil {
			return err
		}
		publisher = broker
		logger.Info("event broker connected", "exchange", cfg.Broker.Exchange)
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	var external *auth.OIDCVerifier
	if cfg.Identity.OIDCIssuerURL != "" {
		external, err = auth.NewOIDCVerifier(ctx, cfg.Identity)
		if err != nil {
			return err
		}
		logger.Info("external identity provider enabled",
			"issuer", cfg.Identity.OIDCIssuerURL,
		)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	entitlement.RegisterMetrics(registry)
	progress.RegisterMetrics(registry)
	httpMetrics := middleware.NewHTTPMetrics(registry)

	profileSvc := profile.NewService(profile.NewRepository(db.DB))
	profileHandler := profile.NewHandler(profileSvc)

	accounts := auth.NewAccountRepository(db.DB)
	authSvc := auth.NewService(
		auth.NewTokenRepository(db.DB),
		accounts,
		jwtManager,
		profileSvc,
		redis,
		publisher,
		cfg.Identity,
	)
	authHandler := auth.NewHandler(
		authSvc,
		cfg.Identity.SessionCookie,
		cfg.Identity.CookieSecure,
	)
	verifier := auth.NewSessionVerifier(jwtManager, accounts, external)

	entitlements := entitlement.NewAdminStore(
		entitlement.NewRepository(db.DB),
		cat,
		publisher,
		cfg.Entitlement,
	)

	progressSvc := progress.NewService(progress.NewRepository(db.DB))
	progressHandler, err := progress.NewHandler(progressSvc, cat)
	if err != nil {
		return err
	}

	videoHandler := video.NewHandler(
		cat,
		func(userID string) video.Grants { return entitlements.Scoped(userID) },
		video.NewThumbnails(redis, cfg.Thumbnail),
	)

	directory := admin.NewDirectory(
		authSvc,
		profileSvc,
		entitlements,
		progressSvc,
		cat,
		cfg.Identity.MinPasswordLength,
	)
	adminHandler, err := admin.NewHandler(admin.HandlerConfig{
		Directory:  directory,
		Catalog:    cat,
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
	})
	if err != nil {
		return err
	}

	deps := []health.Dependency{
		{Name: "database", Checker: db},
		{Name: "redis", Checker: redis},
	}
	if broker != nil {
		deps = append(deps, health.Dependency{Name: "broker", Checker: broker, Optional: true})
	}
	healthHandler := health.NewHandler(deps...)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.Logger(logger))
	router.Use(httpMetrics.Handler)
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerWindow(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen:   true,
			BypassFunc: middleware.SkipHealthChecks,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(verifier, cfg.Identity.SessionCookie)
	adminOnly := middleware.RequireAdmin(profileSvc)

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, categoryLimiter(redis, "auth", cfg.RateLimit.Auth))
		profileHandler.RegisterRoutes(r, authenticator)
		progressHandler.RegisterRoutes(r, authenticator, categoryLimiter(redis, "progress", cfg.RateLimit.Progress))
		videoHandler.RegisterRoutes(r, authenticator)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly, categoryLimiter(redis, "admin", cfg.RateLimit.Admin))
	})

	healthHandler.SetReady(true)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if broker != nil {
		if err := broker.Close(); err != nil {
			logger.Error("broker close error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func categoryLimiter(
	redis *core.Redis,
	category string,
	limit config.WindowLimit,
) func(next http.Handler) http.Handler {
	return middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit:    middleware.PerWindow(limit.Requests, limit.Burst, limit.Window),
		KeyFunc:  middleware.KeyByIPAndCategory(category),
		FailOpen: true,
	}).Handler
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
