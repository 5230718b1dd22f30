// Copyright (c) 2026 Slonik Authors. All rights reserved.

package slonik

import (
	"context"
	"log/slog"

	"github.com/taibuivan/slonik/driver"
	"github.com/taibuivan/slonik/engine"
	"github.com/taibuivan/slonik/internal/platform/ident"
	"github.com/taibuivan/slonik/internal/platform/postgres"
	"github.com/taibuivan/slonik/pool"
	"github.com/taibuivan/slonik/rowparse"
)

// DatabasePool is the top-level connection handle spec §6 names: it
// accepts queries directly (each multiplexed onto the underlying
// [pool.Pool]) and opens [Transaction] handles. A DatabasePool is safe
// for concurrent use by many callers — that is precisely what the pool
// manager multiplexes.
type DatabasePool struct {
	*handle

	id       ident.PoolID
	options  Options
	physical *pool.Pool
	logger   *slog.Logger
}

// Connect parses dsn, constructs the tuned physical pool, and wires up
// the pool manager, driver adapter, type registry, and execution
// pipeline behind one [DatabasePool] handle.
func Connect(ctx context.Context, dsn string, options Options, logger *slog.Logger) (*DatabasePool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	notices := driver.NewNoticeBroker()

	pgCfg := postgres.Config{
		DSN:                             dsn,
		MaxPoolSize:                     int32(options.MaximumPoolSize),
		MaxConnIdleTime:                 options.IdleTimeout,
		ConnectTimeout:                  options.ConnectionTimeout,
		StatementTimeout:                options.StatementTimeout,
		IdleInTransactionSessionTimeout: options.IdleInTransactionSessionTimeout,
		TLSConfig:                       options.SSL,
	}

	physicalPool, err := postgres.NewPool(ctx, pgCfg, logger, notices)
	if err != nil {
		return nil, err
	}

	drv := driver.NewPgxDriver(physicalPool, notices)

	poolID := ident.NewPoolID()
	manager := pool.New(poolID, drv, pool.Options{
		MaximumPoolSize:                 options.MaximumPoolSize,
		ConnectionTimeout:               options.ConnectionTimeout,
		ConnectionRetryLimit:            options.ConnectionRetryLimit,
		IdleTimeout:                     options.IdleTimeout,
		IdleInTransactionSessionTimeout: options.IdleInTransactionSessionTimeout,
		StatementTimeout:                options.StatementTimeout,
		AcquireRateLimit:                options.AcquireRateLimit,
		AcquireBurst:                    options.AcquireBurst,
	})

	registry := rowparse.NewRegistry(options.TypeParsers...)

	pipeline := engine.New(manager, drv, registry, options.Interceptors, engine.Options{
		CaptureStackTrace: options.CaptureStackTrace,
		QueryRetryLimit:   options.QueryRetryLimit,
		StatementTimeout:  options.StatementTimeout,
	})

	return &DatabasePool{
		handle: &handle{
			pipeline:              pipeline,
			drv:                   drv,
			registry:              registry,
			poolID:                poolID,
			kind:                  engine.HandlePool,
			captureStackTrace:     options.CaptureStackTrace,
			transactionRetryLimit: options.TransactionRetryLimit,
		},
		id:       poolID,
		options:  options,
		physical: manager,
		logger:   logger,
	}, nil
}

// GetPoolState reports a point-in-time snapshot of pool occupancy, per
// spec §6's `getPoolState`.
func (p *DatabasePool) GetPoolState() pool.State {
	return p.physical.State()
}

// Configuration returns the [Options] this pool was constructed with.
func (p *DatabasePool) Configuration() Options {
	return p.options
}

// End marks the pool as ended and waits for every checked-out connection
// to drain before closing the underlying driver, per spec §6's `end`.
func (p *DatabasePool) End(ctx context.Context) error {
	return p.physical.End(ctx)
}
