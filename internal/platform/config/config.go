// Copyright (c) 2026 Heimursaga. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Auth) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Heimursaga API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// BaseURL is the public origin used to build password reset and email
	// verification links.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3000"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis) — signup velocity tracking
	RedisURL string `env:"REDIS_URL,required"`

	// JWTSecret signs bearer tokens. Required outside development — Load
	// fails closed rather than falling back to a built-in secret.
	JWTSecret string `env:"JWT_SECRET"`

	// SessionTTL is the browser session lifetime.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	// BearerTokenTTL is the stateless JWT lifetime.
	BearerTokenTTL time.Duration `env:"BEARER_TOKEN_TTL" envDefault:"24h"`

	// VerificationRequestLimit caps how many outstanding (non-expired)
	// verification tokens one email may hold. The quota is shared between
	// password reset and email confirmation tokens.
	VerificationRequestLimit int `env:"VERIFICATION_REQUEST_LIMIT" envDefault:"3"`

	// CaptchaSecret enables CAPTCHA verification on signup when non-empty.
	CaptchaSecret string `env:"CAPTCHA_SECRET"`

	// CaptchaEndpoint is the provider's server-side verification URL.
	CaptchaEndpoint string `env:"CAPTCHA_ENDPOINT" envDefault:"https://hcaptcha.com/siteverify"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	// The JWT secret must never silently default. Development may run
	// without one (an ephemeral secret is minted at startup); every other
	// environment refuses to start.
	if cfg.JWTSecret == "" && !cfg.IsDevelopment() {
		return nil, fmt.Errorf("config: JWT_SECRET is required in %q environment", cfg.Environment)
	}

	if cfg.VerificationRequestLimit < 1 {
		return nil, fmt.Errorf("config: VERIFICATION_REQUEST_LIMIT must be at least 1")
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
