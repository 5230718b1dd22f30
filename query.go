// Copyright (c) 2026 Slonik Authors. All rights reserved.

package slonik

import (
	"context"

	"github.com/taibuivan/slonik/driver"
	"github.com/taibuivan/slonik/engine"
	"github.com/taibuivan/slonik/internal/platform/ident"
	"github.com/taibuivan/slonik/rowparse"
	"github.com/taibuivan/slonik/sqlb"
)

// handle is the shared query surface [DatabasePool], [Transaction], and
// [ExplicitConnection] all implement — spec §6's "same query methods" on
// every connection-handle kind.
type handle struct {
	pipeline *engine.Pipeline
	drv      driver.Driver
	registry *rowparse.Registry

	poolID                ident.PoolID
	connID                ident.ConnectionID
	txID                  ident.TransactionID
	kind                  engine.HandleKind
	pinned                *engine.PinnedConnection // nil for the Pool handle
	captureStackTrace     bool
	transactionRetryLimit int
}

func (h *handle) execute(ctx context.Context, root sqlb.Raw) (*engine.QueryResult, error) {
	qc := engine.NewQueryContext(h.poolID, h.connID, h.txID, h.kind, h.captureStackTrace)
	return h.pipeline.Execute(ctx, qc, h.pinned, root)
}

// Query runs root and returns the full, unshaped result — spec §6's
// `query`.
func (h *handle) Query(ctx context.Context, root sqlb.Raw) (*engine.QueryResult, error) {
	return h.execute(ctx, root)
}

// One returns the query's single row, erroring on zero or more than one.
func (h *handle) One(ctx context.Context, root sqlb.Raw) (sqlb.Row, error) {
	result, err := h.execute(ctx, root)
	if err != nil {
		return nil, err
	}
	return engine.One(result)
}

// OneFirst returns the single column of the query's single row.
func (h *handle) OneFirst(ctx context.Context, root sqlb.Raw) (any, error) {
	result, err := h.execute(ctx, root)
	if err != nil {
		return nil, err
	}
	return engine.OneFirst(result)
}

// MaybeOne returns the query's single row, or nil if it returned none.
func (h *handle) MaybeOne(ctx context.Context, root sqlb.Raw) (sqlb.Row, error) {
	result, err := h.execute(ctx, root)
	if err != nil {
		return nil, err
	}
	return engine.MaybeOne(result)
}

// MaybeOneFirst is [handle.MaybeOne] narrowed to the row's single column.
func (h *handle) MaybeOneFirst(ctx context.Context, root sqlb.Raw) (any, error) {
	result, err := h.execute(ctx, root)
	if err != nil {
		return nil, err
	}
	return engine.MaybeOneFirst(result)
}

// Many returns every row, erroring if the query returned none.
func (h *handle) Many(ctx context.Context, root sqlb.Raw) ([]sqlb.Row, error) {
	result, err := h.execute(ctx, root)
	if err != nil {
		return nil, err
	}
	return engine.Many(result)
}

// ManyFirst returns every row's single column.
func (h *handle) ManyFirst(ctx context.Context, root sqlb.Raw) ([]any, error) {
	result, err := h.execute(ctx, root)
	if err != nil {
		return nil, err
	}
	return engine.ManyFirst(result)
}

// Any returns every row, an empty slice if the query returned none.
func (h *handle) Any(ctx context.Context, root sqlb.Raw) ([]sqlb.Row, error) {
	result, err := h.execute(ctx, root)
	if err != nil {
		return nil, err
	}
	return engine.Any(result), nil
}

// AnyFirst returns every row's single column, erroring only on a
// column-count mismatch.
func (h *handle) AnyFirst(ctx context.Context, root sqlb.Raw) ([]any, error) {
	result, err := h.execute(ctx, root)
	if err != nil {
		return nil, err
	}
	return engine.AnyFirst(result)
}

// Exists reports whether root matched at least one row. root is sent to
// the driver wrapped as `SELECT EXISTS (root)`, so Postgres itself
// short-circuits on the first match rather than the full result set
// materializing client-side.
func (h *handle) Exists(ctx context.Context, root sqlb.Raw) (bool, error) {
	result, err := h.execute(ctx, sqlb.WrapExists(root))
	if err != nil {
		return false, err
	}
	return engine.Exists(result)
}
