// Copyright (c) 2026 Heimursaga. All rights reserved.

// Command api runs the Heimursaga API server.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/heimursaga/api/internal/api"
	"github.com/heimursaga/api/internal/platform/config"
	"github.com/heimursaga/api/internal/platform/constants"
	"github.com/heimursaga/api/internal/platform/migration"
	"github.com/heimursaga/api/internal/platform/postgres"
	"github.com/heimursaga/api/internal/platform/redis"
	"github.com/heimursaga/api/internal/platform/sec"
	"github.com/heimursaga/api/internal/users/auth"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// ── Configuration & Logging ──────────────────────────────────────────

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting",
		slog.String("app", constants.AppName),
		slog.String("version", constants.AppVersion),
		slog.String("environment", cfg.Environment),
	)

	// Root context cancelled on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Storage ──────────────────────────────────────────────────────────

	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, logger); err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	cache, err := redis.NewClient(ctx, cfg.RedisURL, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	// ── Auth Domain ──────────────────────────────────────────────────────

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		// Only reachable in development (config fails closed elsewhere).
		// Tokens do not survive a restart with an ephemeral secret, which
		// is acceptable for local work.
		jwtSecret = ephemeralSecret()
		logger.Warn("using ephemeral jwt secret, bearer tokens reset on restart")
	}
	tokens, err := sec.NewTokenService(jwtSecret, constants.AuthIssuer)
	if err != nil {
		return err
	}

	users := auth.NewPostgresUserRepository(pool)
	sessions := auth.NewPostgresSessionRepository(pool)
	verifications := auth.NewPostgresVerificationRepository(pool)
	velocity := auth.NewRedisVelocityRepository(cache)

	service := auth.NewService(
		users,
		sessions,
		verifications,
		auth.NewAbuseFilter(velocity),
		auth.NewHTTPCaptchaVerifier(cfg.CaptchaSecret, cfg.CaptchaEndpoint),
		tokens,
		auth.NewLogEmitter(logger),
		logger,
		auth.ServiceConfig{
			BaseURL:                  cfg.BaseURL,
			SessionTTL:               cfg.SessionTTL,
			BearerTokenTTL:           cfg.BearerTokenTTL,
			VerificationRequestLimit: int64(cfg.VerificationRequestLimit),
			IsDevelopment:            cfg.IsDevelopment(),
		},
	)

	// ── HTTP Server ──────────────────────────────────────────────────────

	server := api.NewServer(ctx, cfg, logger, pool, cache, auth.NewHandler(service), service)
	httpServer := server.HTTPServer(cfg.ServerPort)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", httpServer.Addr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Drain in-flight requests before exit.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed, forcing close", slog.Any("error", err))
		return httpServer.Close()
	}

	logger.Info("shutdown complete")
	return nil
}

// ephemeralSecret mints a random development-only JWT signing secret.
func ephemeralSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the host is broken; give up loudly.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
