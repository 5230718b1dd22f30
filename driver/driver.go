// Copyright (c) 2026 Slonik Authors. All rights reserved.

/*
Package driver defines the narrow capability set the query engine
consumes from the underlying PostgreSQL wire driver (component D).

The wire protocol itself — binary framing, authentication, TLS — is
entirely out of scope here; it is [github.com/jackc/pgx/v5]'s job. This
package exists so the rest of the engine (pool, transaction, execution
pipeline) depends on an interface it can fake in tests, never on pgx
directly.
*/
package driver

import (
	"context"

	"github.com/taibuivan/slonik/internal/platform/ident"
)

// FieldDescription describes one result column.
type FieldDescription struct {
	Name     string
	OID      uint32
	TypeName string
}

// Notice is a server-emitted NOTICE/WARNING associated with one
// driver.Execute call.
type Notice struct {
	Severity string
	Message  string
	Code     string
}

// ExecResult is the raw, undecoded result of one driver.Execute call.
// Rows is row-major; each element is whatever native Go value pgx
// decoded the column to — [rowparse.Registry] canonicalizes it further.
type ExecResult struct {
	Command string
	Fields  []FieldDescription
	Rows    [][]any
	Notices []Notice
}

// RowBatch is one page of rows fetched from a server-side cursor.
type RowBatch struct {
	Fields []FieldDescription
	Rows   [][]any
}

// Cursor is a lazy, server-side-cursor-backed row iterator.
type Cursor interface {
	// Next fetches up to the cursor's batch size worth of rows. ok is
	// false once the cursor is exhausted.
	Next(ctx context.Context) (batch RowBatch, ok bool, err error)
	Close(ctx context.Context) error
}

// NoticeHandler receives notices as they arrive on a connection.
type NoticeHandler func(Notice)

// ErrorHandler receives every error a driver call on a connection
// produces, in addition to the call's own returned error.
type ErrorHandler func(error)

// Driver is the capability set the query engine needs from the wire
// driver. Every method takes the [ident.ConnectionID] returned by
// Acquire — the driver owns the mapping from that opaque ID to whatever
// physical connection object the underlying library hands back.
type Driver interface {
	// Acquire checks out one physical connection, honouring the driver's
	// own wait queue. The Pool Manager layers connectionTimeout and
	// connectionRetryLimit on top of this call.
	Acquire(ctx context.Context, poolID ident.PoolID) (ident.ConnectionID, error)

	// Release returns a connection to the pool, or destroys it (e.g.
	// after a fatal driver error) when destroy is true.
	Release(ctx context.Context, id ident.ConnectionID, destroy bool) error

	// Execute runs sql with values bound as the statement's positional
	// parameters and returns the full result set.
	Execute(ctx context.Context, id ident.ConnectionID, sql string, values []any) (ExecResult, error)

	// ExecuteCursor opens a server-side cursor over sql and returns a
	// lazy, batchSize-at-a-time iterator over its rows.
	ExecuteCursor(ctx context.Context, id ident.ConnectionID, sql string, values []any, batchSize int) (Cursor, error)

	// CopyInBinary streams tuples into sql (a `COPY … FROM STDIN BINARY`
	// statement) using columnTypes to encode each column.
	CopyInBinary(ctx context.Context, id ident.ConnectionID, sql string, columnTypes []string, tuples [][]any) (rowCount int64, err error)

	// Cancel requests server-side cancellation of whatever statement is
	// in flight on id — the client-side half of statement timeout
	// enforcement.
	Cancel(ctx context.Context, id ident.ConnectionID) error

	// SetSessionParameters applies server-side session settings (e.g.
	// statement_timeout, idle_in_transaction_session_timeout) on id.
	SetSessionParameters(ctx context.Context, id ident.ConnectionID, params map[string]string) error

	// OnNotice registers a live notice handler for id. Notices are also
	// returned from Execute for the call during which they arrived.
	OnNotice(id ident.ConnectionID, handler NoticeHandler)

	// OnError registers a live error handler for id.
	OnError(id ident.ConnectionID, handler ErrorHandler)

	// Close shuts down the underlying physical pool.
	Close(ctx context.Context) error
}
