// Copyright (c) 2026 Slonik Authors. All rights reserved.

/*
Package txn implements the Transaction State Machine (component F): the
top-level BEGIN/COMMIT/ROLLBACK lifecycle and nested SAVEPOINT protocol
bound to one pinned physical connection, plus the SQLSTATE-class-40 retry
policy described in spec §4.F.

A [Transaction] issues its lifecycle statements as plain SQL through an
Executor callback rather than through pgx's own Begin/Commit API —
nested savepoints need the same physical connection reused across every
statement in the transaction, which a raw-SQL approach makes explicit
rather than implicit.
*/
package txn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudflare/backoff"

	"github.com/taibuivan/slonik/internal/platform/dberr"
	"github.com/taibuivan/slonik/internal/platform/ident"
	"github.com/taibuivan/slonik/slonikerr"
)

// State is one node of the transaction lifecycle state machine.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateFinished
)

// Executor runs one SQL statement with no bind values on the pinned
// connection — exactly what BEGIN/COMMIT/ROLLBACK/SAVEPOINT statements
// need, and nothing more; query execution itself goes through the
// engine's own pipeline, not through [Transaction].
type Executor func(ctx context.Context, sql string) error

// Handler is the user-supplied transaction body. A non-nil error rolls
// the transaction (or the innermost savepoint) back; a nil error commits
// it (or releases the innermost savepoint).
type Handler func(ctx context.Context, tx *Transaction) error

// Transaction is a state machine bound to one physical connection,
// identified by id. Depth 0 means no transaction is open; depth 1 is the
// top-level transaction; depth n>1 is a savepoint nested n-1 deep.
type Transaction struct {
	id         ident.TransactionID
	exec       Executor
	state      State
	depth      int
	retryLimit int
}

// New constructs an idle [Transaction] bound to one physical connection.
// exec must run every statement against that same connection.
func New(id ident.TransactionID, exec Executor, transactionRetryLimit int) *Transaction {
	return &Transaction{id: id, exec: exec, state: StateIdle, retryLimit: transactionRetryLimit}
}

// ID returns the transaction's identity.
func (t *Transaction) ID() ident.TransactionID { return t.id }

// Depth returns the current nesting depth (0 = not in a transaction).
func (t *Transaction) Depth() int { return t.depth }

// State returns the current lifecycle state.
func (t *Transaction) State() State { return t.state }

// Run executes handler as a top-level transaction: BEGIN, invoke
// handler, COMMIT on success or ROLLBACK on failure. If handler fails
// with a SQLSTATE class-40 error, the whole transaction (BEGIN..handler)
// is retried up to transactionRetryLimit times with a fresh handler
// invocation against the same pinned connection, per spec §4.F.
func (t *Transaction) Run(ctx context.Context, handler Handler) error {
	if t.state != StateIdle {
		return slonikerr.UnexpectedState(fmt.Sprintf("transaction %s: Run called in state %v, want idle", t.id, t.state))
	}

	b := backoff.New(5*time.Second, 25*time.Millisecond)

	var lastErr error
	for attempt := 0; attempt <= t.retryLimit; attempt++ {
		err := t.runOnce(ctx, handler)
		if err == nil {
			return nil
		}
		lastErr = err

		if !dberr.IsTransactionRollbackClass(err) {
			return err
		}
		if attempt == t.retryLimit {
			break
		}

		select {
		case <-ctx.Done():
			return slonikerr.TransactionRollback(ctx.Err())
		case <-time.After(b.Duration()):
		}
	}

	return slonikerr.TransactionRollback(lastErr)
}

func (t *Transaction) runOnce(ctx context.Context, handler Handler) (err error) {
	if execErr := t.exec(ctx, "START TRANSACTION"); execErr != nil {
		return execErr
	}
	t.state = StateOpen
	t.depth = 1

	defer func() {
		if r := recover(); r != nil {
			_ = t.exec(ctx, "ROLLBACK")
			t.state = StateFinished
			panic(r)
		}
	}()

	if handlerErr := handler(ctx, t); handlerErr != nil {
		_ = t.exec(ctx, "ROLLBACK")
		t.state = StateFinished
		t.depth = 0
		return handlerErr
	}

	if commitErr := t.exec(ctx, "COMMIT"); commitErr != nil {
		t.state = StateFinished
		t.depth = 0
		return commitErr
	}

	t.state = StateFinished
	t.depth = 0
	return nil
}

// Nested runs handler inside a new SAVEPOINT one level deeper than the
// current depth. Savepoints are never retried on their own — only the
// enclosing top-level transaction is, per spec §4.F — so a class-40
// failure here rolls back to the savepoint and propagates, letting the
// top-level Run decide whether to retry the whole transaction.
func (t *Transaction) Nested(ctx context.Context, handler Handler) error {
	if t.state != StateOpen {
		return slonikerr.UnexpectedState(fmt.Sprintf("transaction %s: Nested called outside an open transaction", t.id))
	}

	t.depth++
	depth := t.depth
	name := savepointName(depth)

	if err := t.exec(ctx, "SAVEPOINT "+name); err != nil {
		t.depth--
		return err
	}

	if handlerErr := handler(ctx, t); handlerErr != nil {
		if rbErr := t.exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			t.depth--
			return errors.Join(handlerErr, rbErr)
		}
		t.depth--
		return handlerErr
	}

	if relErr := t.exec(ctx, "RELEASE SAVEPOINT "+name); relErr != nil {
		t.depth--
		return relErr
	}

	t.depth--
	return nil
}

func savepointName(depth int) string {
	return fmt.Sprintf("slonik_%d", depth)
}

// RunStandaloneQuery retries a standalone (non-transactional) statement
// execution up to queryRetryLimit times on SQLSTATE class-40 failures,
// per spec §4.F's "a standalone query ... is retried" rule. It is used
// by the execution pipeline (component G), not by [Transaction] itself.
func RunStandaloneQuery(ctx context.Context, queryRetryLimit int, run func(ctx context.Context) error) error {
	b := backoff.New(5*time.Second, 25*time.Millisecond)

	var lastErr error
	for attempt := 0; attempt <= queryRetryLimit; attempt++ {
		err := run(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !dberr.IsTransactionRollbackClass(err) {
			return err
		}
		if attempt == queryRetryLimit {
			break
		}

		select {
		case <-ctx.Done():
			return slonikerr.TransactionRollback(ctx.Err())
		case <-time.After(b.Duration()):
		}
	}

	return slonikerr.TransactionRollback(lastErr)
}
