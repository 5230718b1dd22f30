// Copyright (c) 2026 Slonik Authors. All rights reserved.

/*
Package postgres constructs and tunes the underlying [*pgxpool.Pool] that
backs a [github.com/taibuivan/slonik/driver.Driver]. It is the only place
in the module that parses a DSN or touches pgxpool's own configuration
knobs — everything above it (the pool manager, the transaction state
machine, the execution pipeline) only ever sees [driver.Driver].

Architecture:

  - Tuning: maps slonik's Options onto pgxpool's MaxConns/MinConns/
    MaxConnLifetime/MaxConnIdleTime.
  - Notices: installs a [driver.NoticeBroker] as ConnConfig.OnNotice so
    every physical connection's NOTICE/WARNING traffic is captured.
  - Session defaults: AfterConnect applies statement_timeout and
    idle_in_transaction_session_timeout to every new physical connection.
*/
package postgres

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/slonik/driver"
)

// Config carries the pool-construction knobs a [Config] (the root
// package's Options) resolves into before reaching this package.
type Config struct {
	DSN string

	MaxPoolSize int32
	MinPoolSize int32

	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration

	// TLSConfig overrides the DSN-derived TLS settings when non-nil —
	// Options.SSL.
	TLSConfig *tls.Config

	// StatementTimeout and IdleInTransactionSessionTimeout are applied to
	// every physical connection via AfterConnect, in addition to being
	// enforced again per-query/per-transaction by the engine.
	StatementTimeout                time.Duration
	IdleInTransactionSessionTimeout time.Duration
}

const pingTimeout = 2 * time.Second

// NewPool parses cfg.DSN, tunes pgxpool accordingly, wires notices into
// broker, and validates connectivity with a Ping before returning.
func NewPool(ctx context.Context, cfg Config, logger *slog.Logger, notices *driver.NoticeBroker) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxPoolSize
	poolConfig.MinConns = cfg.MinPoolSize
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	poolConfig.ConnConfig.OnNotice = notices.OnNoticeFunc
	if cfg.TLSConfig != nil {
		poolConfig.ConnConfig.TLSConfig = cfg.TLSConfig
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if cfg.StatementTimeout > 0 {
			stmt := fmt.Sprintf("SET statement_timeout = '%dms'", cfg.StatementTimeout.Milliseconds())
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("postgres: set statement_timeout: %w", err)
			}
		}
		if cfg.IdleInTransactionSessionTimeout > 0 {
			stmt := fmt.Sprintf("SET idle_in_transaction_session_timeout = '%dms'", cfg.IdleInTransactionSessionTimeout.Milliseconds())
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("postgres: set idle_in_transaction_session_timeout: %w", err)
			}
		}
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	if err := Ping(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	stats := pool.Stat()
	logger.Info("postgres pool connected",
		slog.Int("max_conns", int(stats.MaxConns())),
		slog.Int("total_conns", int(stats.TotalConns())),
	)

	return pool, nil
}

// Ping verifies that the pool can reach the database within pingTimeout,
// or sooner if ctx carries an earlier deadline.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}

	return nil
}
