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

// Transaction is the pinned-connection handle spec §6 names: the same
// query methods as [DatabasePool], plus nested [Transaction.Transaction]
// (savepoints) and [Transaction.Stream]. No `copyFromBinary`, no `end` —
// spec §6 excludes both from this handle.
//
// A Transaction MUST NOT be used concurrently: spec §5's per-handle busy
// flag rejects an overlapping call with [slonikerr.KindConcurrency].
type Transaction struct {
	*handle

	tx   *txn.Transaction
	busy int32
}

// TransactionHandler is the user-supplied transaction body.
type TransactionHandler func(ctx context.Context, tx *Transaction) error

// Transaction runs handler as a top-level transaction against one
// connection acquired for its whole duration: BEGIN, invoke handler,
// COMMIT on success or ROLLBACK on failure, retrying the entire
// transaction up to Options.TransactionRetryLimit times on SQLSTATE
// class-40 failures — spec §4.F, scenario S6.
func (p *DatabasePool) Transaction(ctx context.Context, handler TransactionHandler) error {
	connID, release, err := p.physical.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release(false)

	txID := ident.NewTransactionID()

	executor := func(ctx context.Context, sql string) error {
		_, execErr := p.drv.Execute(ctx, connID, sql, nil)
		return execErr
	}

	lifecycle := txn.New(txID, executor, p.options.TransactionRetryLimit)

	tx := &Transaction{
		handle: &handle{
			pipeline:              p.handle.pipeline,
			drv:                   p.handle.drv,
			registry:              p.handle.registry,
			poolID:                p.id,
			connID:                connID,
			txID:                  txID,
			kind:                  engine.HandleTransaction,
			pinned:                &engine.PinnedConnection{ID: connID},
			captureStackTrace:     p.options.CaptureStackTrace,
			transactionRetryLimit: p.options.TransactionRetryLimit,
		},
		tx: lifecycle,
	}

	return lifecycle.Run(ctx, func(ctx context.Context, _ *txn.Transaction) error {
		return handler(ctx, tx)
	})
}

// Transaction runs handler inside a SAVEPOINT nested one level deeper
// than t — spec §6's nested `transaction` on the Transaction handle.
// Savepoints are never retried on their own; a class-40 failure here
// rolls back to the savepoint and propagates to the enclosing
// [DatabasePool.Transaction] call, which decides whether to retry the
// whole transaction.
func (t *Transaction) Transaction(ctx context.Context, handler TransactionHandler) error {
	if !atomic.CompareAndSwapInt32(&t.busy, 0, 1) {
		return slonikerr.Concurrency()
	}
	defer atomic.StoreInt32(&t.busy, 0)

	// The handler gets its own handle on the same connection: t stays busy
	// for the whole savepoint, so queries issued through t itself would be
	// rejected as overlapping.
	return t.tx.Nested(ctx, func(ctx context.Context, _ *txn.Transaction) error {
		return handler(ctx, &Transaction{handle: t.handle, tx: t.tx})
	})
}

// guard rejects overlapping use of this pinned handle, per spec §5.
func (t *Transaction) guard() (release func(), err error) {
	if !atomic.CompareAndSwapInt32(&t.busy, 0, 1) {
		return nil, slonikerr.Concurrency()
	}
	return func() { atomic.StoreInt32(&t.busy, 0) }, nil
}

// Query runs root and returns the full, unshaped result, guarded against
// concurrent use of this pinned handle.
func (t *Transaction) Query(ctx context.Context, root sqlb.Raw) (*engine.QueryResult, error) {
	release, err := t.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return t.handle.Query(ctx, root)
}

// One is [Transaction.Query] narrowed to exactly one row.
func (t *Transaction) One(ctx context.Context, root sqlb.Raw) (sqlb.Row, error) {
	release, err := t.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return t.handle.One(ctx, root)
}

// OneFirst is [Transaction.One] narrowed to the row's single column.
func (t *Transaction) OneFirst(ctx context.Context, root sqlb.Raw) (any, error) {
	release, err := t.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return t.handle.OneFirst(ctx, root)
}

// MaybeOne is [Transaction.Query] narrowed to at most one row.
func (t *Transaction) MaybeOne(ctx context.Context, root sqlb.Raw) (sqlb.Row, error) {
	release, err := t.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return t.handle.MaybeOne(ctx, root)
}

// MaybeOneFirst is [Transaction.MaybeOne] narrowed to one column.
func (t *Transaction) MaybeOneFirst(ctx context.Context, root sqlb.Raw) (any, error) {
	release, err := t.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return t.handle.MaybeOneFirst(ctx, root)
}

// Many is [Transaction.Query] narrowed to one-or-more rows.
func (t *Transaction) Many(ctx context.Context, root sqlb.Raw) ([]sqlb.Row, error) {
	release, err := t.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return t.handle.Many(ctx, root)
}

// ManyFirst is [Transaction.Many] narrowed to one column per row.
func (t *Transaction) ManyFirst(ctx context.Context, root sqlb.Raw) ([]any, error) {
	release, err := t.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return t.handle.ManyFirst(ctx, root)
}

// Any is [Transaction.Query] narrowed to zero-or-more rows.
func (t *Transaction) Any(ctx context.Context, root sqlb.Raw) ([]sqlb.Row, error) {
	release, err := t.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return t.handle.Any(ctx, root)
}

// AnyFirst is [Transaction.Any] narrowed to one column per row.
func (t *Transaction) AnyFirst(ctx context.Context, root sqlb.Raw) ([]any, error) {
	release, err := t.guard()
	if err != nil {
		return nil, err
	}
	defer release()
	return t.handle.AnyFirst(ctx, root)
}

// Exists reports whether root matched at least one row.
func (t *Transaction) Exists(ctx context.Context, root sqlb.Raw) (bool, error) {
	release, err := t.guard()
	if err != nil {
		return false, err
	}
	defer release()
	return t.handle.Exists(ctx, root)
}

// Stream opens a server-side cursor over root on this transaction's
// pinned connection — spec §6's `stream` on the Transaction handle. The
// connection is never released by Stream itself (the transaction keeps
// owning it); only the cursor is closed on completion.
func (t *Transaction) Stream(ctx context.Context, batchSize int, root sqlb.Raw, sink func(row sqlb.Row) error) error {
	release, err := t.guard()
	if err != nil {
		return err
	}
	defer release()

	sql, values, err := sqlb.Interpret(root)
	if err != nil {
		return err
	}

	return streaming.Stream(ctx, t.handle.drv, t.handle.registry, t.handle.connID, func(bool) {}, batchSize, sql, values, sink)
}
