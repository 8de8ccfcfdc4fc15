// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

// Command api is the entry point for the CareLink HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Seed the role definitions (idempotent).
//  7. Wire HTTP handlers and the session expiry sweeper.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/carelinkhq/carelink/internal/api"
	"github.com/carelinkhq/carelink/internal/auth"
	"github.com/carelinkhq/carelink/internal/platform/config"
	"github.com/carelinkhq/carelink/internal/platform/constants"
	"github.com/carelinkhq/carelink/internal/platform/email"
	"github.com/carelinkhq/carelink/internal/platform/migration"
	"github.com/carelinkhq/carelink/internal/platform/oauth"
	pgstore "github.com/carelinkhq/carelink/internal/platform/postgres"
	redisstore "github.com/carelinkhq/carelink/internal/platform/redis"
	"github.com/carelinkhq/carelink/internal/platform/sec"
)

// sweepInterval is how often expired sessions are physically removed.
const sweepInterval = 1 * time.Hour

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	// .env files are a local-development convenience; absent in production.
	_ = godotenv.Load()

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Security Primitives ────────────────────────────────────────────
	tokenIssuer, err := sec.NewTokenIssuer(cfg.SecretKey, constants.AuthIssuer)
	must(log, err, "initialize token issuer")
	hasher := sec.NewHasher()

	// ── 7. Outbound Collaborators ─────────────────────────────────────────
	var mailer auth.EmailSender
	if cfg.PostmarkServerToken != "" {
		postmarkSender, err := email.NewSender(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.EmailFrom, log)
		must(log, err, "initialize email sender")
		mailer = postmarkSender
	} else {
		log.Warn("email_delivery_disabled_using_log_sender")
		mailer = email.NewLogSender(log)
	}

	providers := map[string]auth.ProviderGateway{}
	if cfg.GoogleOAuthEnabled() {
		providers[auth.ProviderGoogle] = oauth.NewGoogleGateway(
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL,
			cfg.GoogleScopes,
		)
		log.Info("oauth_provider_enabled", slog.String("provider", auth.ProviderGoogle))
	}

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	roleStore := auth.NewRoleStore(pool)

	// Seed the role definitions before accepting traffic
	must(log, roleStore.EnsureSeeded(startupCtx, sec.KnownRoles()), "seed roles")

	authService := auth.NewService(auth.Deps{
		Users:     auth.NewUserStore(pool),
		Accounts:  auth.NewAccountStore(pool),
		Roles:     roleStore,
		Sessions:  auth.NewSessionStore(pool),
		Codes:     auth.NewVerificationCodeStore(pool),
		States:    auth.NewStateCache(rdb),
		Mailer:    mailer,
		Providers: providers,
		Tokens:    tokenIssuer,
		Hasher:    hasher,
		Tx:        pgstore.NewTxManager(pool),
		BaseURL:   cfg.BaseURL,
		Logger:    log,
	})
	authHandler := auth.NewHandler(authService)

	// ── 9. Health Handlers ────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
	}

	server := api.NewServer(serverCtx, cfg, log, tokenIssuer, handlers)

	// Background sweep of sessions past their expiry
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := authService.SweepExpiredSessions(serverCtx); err != nil {
					log.Error("session_sweep_failed", slog.Any("error", err))
				}
			case <-serverCtx.Done():
				return
			}
		}
	}()

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
