// Copyright (c) 2026 Slonik Authors. All rights reserved.

/*
Example is a runnable walkthrough of the slonik client against a real
PostgreSQL instance: composing SQL safely, running it inside a
transaction, streaming a result set, and (when REDIS_URL is set) caching
a read through [cacheinterceptor].

Usage:

	go run cmd/example/main.go

It takes no flags; it is configured through these environment variables:

	DATABASE_URL    Postgres connection string (required)
	REDIS_URL       Redis connection string (optional; enables caching)
	MIGRATION_PATH  fixture-schema migrations directory (default: ./data/migrations)

Startup Sequence:

 1. Logger: Initialize structured JSON logging (slog).
 2. Config: Load and validate environment variables.
 3. Migration: Apply the fixture schema.
 4. Pool: Connect the slonik client, wiring the cache interceptor if configured.
 5. Demo: Compose and run a handful of representative queries.

No business logic lives here. This file is strictly for orchestration and wiring.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/taibuivan/slonik"
	"github.com/taibuivan/slonik/cacheinterceptor"
	"github.com/taibuivan/slonik/engine"
	"github.com/taibuivan/slonik/internal/platform/config"
	"github.com/taibuivan/slonik/internal/platform/migration"
	redisstore "github.com/taibuivan/slonik/internal/platform/redis"
	"github.com/taibuivan/slonik/pkg/pointer"
	"github.com/taibuivan/slonik/sqlb"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application_startup_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// # 1. Logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With(slog.String("app", "slonik-example"))
	slog.SetDefault(log)
	log.Info("example_initializing")

	// # 2. Configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// # 3. Migrations
	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// # 4. Pool
	opts := []slonik.Option{
		slonik.WithMaximumPoolSize(int64(cfg.MaxPoolSize)),
		slonik.WithConnectionTimeout(cfg.ConnectionTimeout),
		slonik.WithStatementTimeout(cfg.StatementTimeout),
		slonik.WithIdleInTransactionSessionTimeout(cfg.IdleInTransactionSessionTimeout),
	}

	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() {
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", slog.Any("error", cerr))
			}
		}()
		// selectCacheTagger opts every SELECT into a 30s cache, ahead of
		// cacheinterceptor itself in the chain — interceptors run in
		// registration order, so the tag must land before the cache
		// interceptor's own beforeQueryExecution hook reads it.
		opts = append(opts, slonik.WithInterceptors(selectCacheTagger{ttl: 30 * time.Second}, cacheinterceptor.New(rdb, "slonik-example")))
		log.Info("cache_interceptor_enabled")
	}

	pool, err := slonik.Connect(startupCtx, cfg.DatabaseURL, slonik.NewOptions(opts...), log)
	if err != nil {
		return fmt.Errorf("connect pool: %w", err)
	}
	defer func() {
		log.Info("closing_pool")
		if cerr := pool.End(context.Background()); cerr != nil {
			log.Error("pool_end_failed", slog.Any("error", cerr))
		}
	}()

	ctx := context.Background()

	// # 5. Demo
	if err := demoTransaction(ctx, pool, log); err != nil {
		return fmt.Errorf("demo transaction: %w", err)
	}
	if err := demoQuery(ctx, pool, nil, log); err != nil {
		return fmt.Errorf("demo query: %w", err)
	}
	if err := demoStream(ctx, pool, log); err != nil {
		return fmt.Errorf("demo stream: %w", err)
	}

	state := pool.GetPoolState()
	log.Info("pool_state",
		slog.Int64("active", state.Active),
		slog.Int64("idle", state.Idle),
		slog.Int64("waiting", state.Waiting),
	)

	return nil
}

// demoTransaction inserts one row inside a retried transaction, using
// sqlb's token algebra to keep every value bound rather than
// interpolated.
func demoTransaction(ctx context.Context, pool *slonik.DatabasePool, log *slog.Logger) error {
	return pool.Transaction(ctx, func(ctx context.Context, tx *slonik.Transaction) error {
		insert, err := sqlb.SQL(
			[]string{"INSERT INTO widgets (name, weight_kg) VALUES (", ", ", ") RETURNING id"},
			"crankshaft", 4.2,
		)
		if err != nil {
			return err
		}

		id, err := tx.OneFirst(ctx, insert)
		if err != nil {
			return err
		}

		log.Info("widget_inserted", slog.Any("id", id))
		return nil
	})
}

// demoQuery looks a widget up by id, falling back to id 1 when none is
// supplied, using [pointer.Fallback] to avoid an explicit nil check.
func demoQuery(ctx context.Context, pool *slonik.DatabasePool, id *int64, log *slog.Logger) error {
	lookupID := pointer.Fallback(id, int64(1))

	query, err := sqlb.SQL(
		[]string{"SELECT id, name, weight_kg FROM widgets WHERE id = ", ""},
		lookupID,
	)
	if err != nil {
		return err
	}

	row, err := pool.MaybeOne(ctx, query)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if row == nil {
		log.Info("widget_not_found", slog.Int64("id", lookupID))
		return nil
	}

	log.Info("widget_found", slog.Any("row", row))
	return nil
}

// demoStream walks every widget via a server-side cursor, proving the
// cursor and connection are released on completion.
func demoStream(ctx context.Context, pool *slonik.DatabasePool, log *slog.Logger) error {
	all, err := sqlb.SQL([]string{"SELECT id, name, weight_kg FROM widgets ORDER BY id"})
	if err != nil {
		return err
	}

	count := 0
	err = pool.Stream(ctx, 50, all, func(row sqlb.Row) error {
		count++
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("widgets_streamed", slog.Int("count", count))
	return nil
}

// selectCacheTagger opts every SELECT statement into the cache
// interceptor's TTL. Inserts, updates, and deletes are left untagged,
// so they are never served from the cache or written into it.
type selectCacheTagger struct {
	engine.BaseInterceptor
	ttl time.Duration
}

func (t selectCacheTagger) BeforeTransformQuery(ctx context.Context, qc *engine.QueryContext, query sqlb.Raw) error {
	if strings.HasPrefix(strings.TrimSpace(query.SQL), "SELECT") {
		cacheinterceptor.WithTTL(qc, t.ttl)
	}
	return nil
}
