// Copyright (c) 2026 Slonik Authors. All rights reserved.

/*
Package config handles environment parsing for the example program and the
integration test suite — not for library consumers, who configure a pool
through the root package's functional [Options] instead.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to the pool/driver constructors explicitly.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds the environment-derived settings needed to stand up a
// pool against a real PostgreSQL instance and (optionally) a Redis cache
// backing a query-result cache interceptor.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Debug       bool   `env:"DEBUG"       envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the fixture-schema
	// migrations directory applied before the example program or the
	// integration suite runs.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis), backing the optional result cache
	// interceptor.
	RedisURL string `env:"REDIS_URL"`

	MaxPoolSize                    int32         `env:"MAX_POOL_SIZE" envDefault:"10"`
	MinPoolSize                    int32         `env:"MIN_POOL_SIZE" envDefault:"0"`
	ConnectionTimeout              time.Duration `env:"CONNECTION_TIMEOUT" envDefault:"5s"`
	IdleTimeout                    time.Duration `env:"IDLE_TIMEOUT" envDefault:"10m"`
	MaxLifetime                    time.Duration `env:"MAX_LIFETIME" envDefault:"60m"`
	StatementTimeout               time.Duration `env:"STATEMENT_TIMEOUT" envDefault:"0"`
	IdleInTransactionSessionTimeout time.Duration `env:"IDLE_IN_TRANSACTION_SESSION_TIMEOUT" envDefault:"0"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the process is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the process is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
