// Copyright (c) 2026 Heimursaga. All rights reserved.

/*
Package api assembles the HTTP server: router, middleware chain, and route
mounting.

# Request Pipeline

	RequestID → StructuredLogger → PanicRecovery → CORS → RateLimit →
	Identify → [per-route Require/RequireRoles] → handler

Identity resolution runs for every request, including public routes, so the
guard can pre-provision anonymous session ids and handlers can personalize
public responses.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/heimursaga/api/internal/platform/config"
	"github.com/heimursaga/api/internal/platform/constants"
	"github.com/heimursaga/api/internal/platform/middleware"
	"github.com/heimursaga/api/internal/users/auth"
)

// Server bundles the router with the resources health checks inspect.
type Server struct {
	router chi.Router
	pool   *pgxpool.Pool
	cache  *redis.Client
	logger *slog.Logger
}

// NewServer builds the full HTTP surface.
//
// # Parameters
//   - ctx: Lifetime context; background middleware goroutines stop with it.
//   - cfg: Loaded application configuration.
//   - authHandler: The mounted authentication controller.
//   - identifier: Resolves request credentials for the guard.
func NewServer(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	pool *pgxpool.Pool,
	cache *redis.Client,
	authHandler *auth.Handler,
	identifier middleware.Identifier,
) *Server {
	server := &Server{
		pool:   pool,
		cache:  cache,
		logger: logger,
	}

	router := chi.NewRouter()

	// Cross-cutting chain, outermost first.
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(logger))
	router.Use(middleware.PanicRecovery(logger))
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimit(ctx))
	router.Use(middleware.Identify(identifier, cfg.SessionTTL))

	// Liveness and readiness sit outside the auth surface.
	router.Get("/health", server.handleHealth)
	router.Get("/ready", server.handleReady)

	router.Mount("/auth", authHandler.Routes())

	server.router = router
	return server
}

// Handler returns the assembled http.Handler.
func (server *Server) Handler() http.Handler {
	return server.router
}

// HTTPServer wraps the handler in a tuned http.Server.
func (server *Server) HTTPServer(port string) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           server.router,
		ReadTimeout:       constants.DefaultReadTimeout,
		ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		WriteTimeout:      constants.DefaultWriteTimeout,
		IdleTimeout:       constants.DefaultIdleTimeout,
	}
}
