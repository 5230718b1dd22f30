// Copyright (c) 2026 Slonik Authors. All rights reserved.

package slonik

import (
	"context"
	"sync/atomic"

	"github.com/taibuivan/slonik/engine"
	"github.com/taibuivan/slonik/internal/platform/ident"
	"github.com/taibuivan/slonik/slonikerr"
	"github.com/taibuivan/slonik/sqlb"
	"github.com/taibuivan/slonik/streaming"
	"github.com/taibuivan/slonik/txn"
)

// ExplicitConnection is a connection-handle kind pinned to one physical
// connection for its caller-controlled lifetime — used for session-scoped
// work (advisory locks, `SET` statements outside a transaction) that must
// survive across several queries on the exact same backend. It exposes
// the same query methods as [DatabasePool] and [Transaction], but like
// Transaction it MUST NOT be used concurrently.
type ExplicitConnection struct {
	*handle

	release func(destroy bool)
	busy    int32
}

// Connect acquires one physical connection from p and pins it to the
// returned [ExplicitConnection] until [ExplicitConnection.Release] is
// called.
func (p *DatabasePool) Connect(ctx context.Context) (*ExplicitConnection, error) {
	connID, release, err := p.physical.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	return &ExplicitConnection{
		handle: &handle{
			pipeline:              p.handle.pipeline,
			drv:                   p.handle.drv,
			registry:              p.handle.registry,
			poolID:                p.id,
			connID:                connID,
			kind:                  engine.HandleExplicitConnection,
			pinned:                &engine.PinnedConnection{ID: connID},
			captureStackTrace:     p.options.CaptureStackTrace,
			transactionRetryLimit: p.options.TransactionRetryLimit,
		},
		release: release,
	}, nil
}

// Release returns the pinned connection to the pool. Calling it more
// than once is a no-op.
func (c *ExplicitConnection) Release(ctx context.Context) {
	if c.release == nil {
		return
	}
	c.release(false)
	c.release = nil
}

func (c *ExplicitConnection) guard() (func(), error) {
	if !atomic.CompareAndSwapInt32(&c.busy, 0, 1) {
		return nil, slonikerr.Concurrency()
	}
	return func() { atomic.StoreInt32(&c.busy, 0) }, nil
}

// Query runs root and returns the full, unshaped result, guarded against
// concurrent use of this pinned handle.
func (c *ExplicitConnection) Query(ctx context.Context, root sqlb.Raw) (*engine.QueryResult, error) {
	release, err := c.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.handle.Query(ctx, root)
}

// One is [ExplicitConnection.Query] narrowed to exactly one row.
func (c *ExplicitConnection) One(ctx context.Context, root sqlb.Raw) (sqlb.Row, error) {
	release, err := c.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.handle.One(ctx, root)
}

// OneFirst is [ExplicitConnection.One] narrowed to the row's single column.
func (c *ExplicitConnection) OneFirst(ctx context.Context, root sqlb.Raw) (any, error) {
	release, err := c.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.handle.OneFirst(ctx, root)
}

// MaybeOne is [ExplicitConnection.Query] narrowed to at most one row.
func (c *ExplicitConnection) MaybeOne(ctx context.Context, root sqlb.Raw) (sqlb.Row, error) {
	release, err := c.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.handle.MaybeOne(ctx, root)
}

// MaybeOneFirst is [ExplicitConnection.MaybeOne] narrowed to one column.
func (c *ExplicitConnection) MaybeOneFirst(ctx context.Context, root sqlb.Raw) (any, error) {
	release, err := c.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.handle.MaybeOneFirst(ctx, root)
}

// Many is [ExplicitConnection.Query] narrowed to one-or-more rows.
func (c *ExplicitConnection) Many(ctx context.Context, root sqlb.Raw) ([]sqlb.Row, error) {
	release, err := c.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.handle.Many(ctx, root)
}

// ManyFirst is [ExplicitConnection.Many] narrowed to one column per row.
func (c *ExplicitConnection) ManyFirst(ctx context.Context, root sqlb.Raw) ([]any, error) {
	release, err := c.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.handle.ManyFirst(ctx, root)
}

// Any is [ExplicitConnection.Query] narrowed to zero-or-more rows.
func (c *ExplicitConnection) Any(ctx context.Context, root sqlb.Raw) ([]sqlb.Row, error) {
	release, err := c.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.handle.Any(ctx, root)
}

// AnyFirst is [ExplicitConnection.Any] narrowed to one column per row.
func (c *ExplicitConnection) AnyFirst(ctx context.Context, root sqlb.Raw) ([]any, error) {
	release, err := c.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.handle.AnyFirst(ctx, root)
}

// Exists reports whether root matched at least one row.
func (c *ExplicitConnection) Exists(ctx context.Context, root sqlb.Raw) (bool, error) {
	release, err := c.guard()
	if err != nil {
		return false, err
	}
	defer release()
	return c.handle.Exists(ctx, root)
}

// Transaction runs handler as a top-level transaction bound to this
// pinned connection, the same way [DatabasePool.Transaction] does for a
// freshly acquired one.
func (c *ExplicitConnection) Transaction(ctx context.Context, handler TransactionHandler) error {
	release, err := c.guard()
	if err != nil {
		return err
	}
	defer release()

	txID := ident.NewTransactionID()
	executor := func(ctx context.Context, sql string) error {
		_, execErr := c.handle.drv.Execute(ctx, c.handle.connID, sql, nil)
		return execErr
	}
	lifecycle := txn.New(txID, executor, c.handle.transactionRetryLimit)

	tx := &Transaction{handle: &handle{
		pipeline:              c.handle.pipeline,
		drv:                   c.handle.drv,
		registry:              c.handle.registry,
		poolID:                c.handle.poolID,
		connID:                c.handle.connID,
		txID:                  txID,
		kind:                  engine.HandleTransaction,
		pinned:                c.handle.pinned,
		captureStackTrace:     c.handle.captureStackTrace,
		transactionRetryLimit: c.handle.transactionRetryLimit,
	}}

	return lifecycle.Run(ctx, func(ctx context.Context, _ *txn.Transaction) error {
		return handler(ctx, tx)
	})
}

// Stream opens a server-side cursor over root on this pinned connection.
func (c *ExplicitConnection) Stream(ctx context.Context, batchSize int, root sqlb.Raw, sink func(row sqlb.Row) error) error {
	release, err := c.guard()
	if err != nil {
		return err
	}
	defer release()

	sql, values, err := sqlb.Interpret(root)
	if err != nil {
		return err
	}

	return streaming.Stream(ctx, c.handle.drv, c.handle.registry, c.handle.connID, func(bool) {}, batchSize, sql, values, sink)
}
