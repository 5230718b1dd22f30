// Copyright (c) 2026 Slonik Authors. All rights reserved.

package engine

import (
	"context"
	"time"

	"github.com/taibuivan/slonik/driver"
	"github.com/taibuivan/slonik/internal/platform/ctxutil"
	"github.com/taibuivan/slonik/internal/platform/dberr"
	"github.com/taibuivan/slonik/internal/platform/ident"
	"github.com/taibuivan/slonik/pool"
	"github.com/taibuivan/slonik/rowparse"
	"github.com/taibuivan/slonik/slonikerr"
	"github.com/taibuivan/slonik/sqlb"
	"github.com/taibuivan/slonik/txn"
)

// Options configures one [Pipeline]'s policy knobs, independent of pool
// sizing (owned by [pool.Options]) and transaction retry (owned by
// [txn.Transaction]).
type Options struct {
	CaptureStackTrace bool
	QueryRetryLimit   int
	StatementTimeout  time.Duration
}

// PinnedConnection identifies a connection a [Transaction] or
// ExplicitConnection handle already owns; Execute reuses it instead of
// acquiring a fresh one from the pool.
type PinnedConnection struct {
	ID ident.ConnectionID
}

// Pipeline is the Execution Pipeline (component G): it runs the 9-step
// sequence spec §4.G describes against one [pool.Pool]/[driver.Driver]
// pair, using registry to canonicalize result rows.
type Pipeline struct {
	defaultPool  *pool.Pool
	drv          driver.Driver
	registry     *rowparse.Registry
	interceptors []Interceptor
	options      Options
}

// New constructs a [Pipeline]. interceptors run in registration order at
// every hook point, per spec §5's ordering rule.
func New(defaultPool *pool.Pool, drv driver.Driver, registry *rowparse.Registry, interceptors []Interceptor, options Options) *Pipeline {
	return &Pipeline{defaultPool: defaultPool, drv: drv, registry: registry, interceptors: interceptors, options: options}
}

// Execute runs the full 9-step pipeline for one query. pinned is nil for
// a Pool-kind handle (a fresh connection is acquired per call) and
// non-nil for a Transaction/ExplicitConnection handle (the given
// connection is reused, never released by Execute itself).
func (p *Pipeline) Execute(ctx context.Context, qc *QueryContext, pinned *PinnedConnection, root sqlb.Raw) (_ *QueryResult, err error) {
	// A [*slonikerr.Error] leaving the pipeline carries this query's id,
	// rendered SQL and bind values.
	defer func() {
		if se, ok := err.(*slonikerr.Error); ok {
			err = se.WithQuery(string(qc.QueryID), qc.Query.SQL, qc.Query.Values)
		}
	}()

	ctx = ctxutil.WithQueryID(ctx, qc.QueryID)

	// Step 2: beforeTransformQuery (observational).
	for _, ic := range p.interceptors {
		if err := ic.BeforeTransformQuery(ctx, qc, root); err != nil {
			return nil, err
		}
	}

	// Step 3: interpret.
	if err := Interpret(qc, root); err != nil {
		return nil, err
	}

	// Step 4: transformQuery, sequential, each sees the prior's output.
	for _, ic := range p.interceptors {
		outcome, err := ic.TransformQuery(ctx, qc, qc.Query)
		if err != nil {
			return nil, err
		}
		if replaced, ok := outcome.(ReplaceOutcome); ok {
			qc.Query = replaced.Query
		}
	}

	// Step 5: beforeQueryExecution; first short-circuit wins.
	var shortCircuit *QueryResult
	for _, ic := range p.interceptors {
		outcome, err := ic.BeforeQueryExecution(ctx, qc, qc.Query)
		if err != nil {
			return nil, err
		}
		if sc, ok := outcome.(ShortCircuitOutcome); ok {
			result := sc.Result
			shortCircuit = &result
			break
		}
	}

	var result *QueryResult
	if shortCircuit != nil {
		result = shortCircuit
	} else {
		r, err := p.acquireAndExecute(ctx, qc, pinned)
		if err != nil {
			for _, ic := range p.interceptors {
				if hookErr := ic.QueryExecutionError(ctx, qc, qc.Query, err); hookErr != nil {
					return nil, hookErr
				}
			}
			return nil, err
		}
		result = r
	}

	// Step 9: beforeQueryResult, transformRow, rowSchema.parse,
	// afterQueryExecution — in that order. transformRow runs before
	// schema validation so a schema sees the interceptor-edited row, not
	// the raw driver output.
	for _, ic := range p.interceptors {
		if err := ic.BeforeQueryResult(ctx, qc, qc.Query, result); err != nil {
			return nil, err
		}
	}

	for i, row := range result.Rows {
		transformed := row
		for _, ic := range p.interceptors {
			r, err := ic.TransformRow(ctx, qc, transformed)
			if err != nil {
				return nil, err
			}
			transformed = r
		}

		validated, err := rowparse.ApplySchema(root.RowSchema, transformed)
		if err != nil {
			return nil, err
		}
		result.Rows[i] = validated
	}

	for _, ic := range p.interceptors {
		if err := ic.AfterQueryExecution(ctx, qc, qc.Query, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// acquireAndExecute performs step 6 (acquire/reuse connection) and step
// 7 (driver.Execute, with the statement-timeout watchdog). Only a query
// that acquires its own connection from a pool (pinned == nil) is retried
// on SQLSTATE class 40 failures. A query on a pinned connection runs
// once and is not retried: inside a transaction the Run level retries the
// whole transaction, and on an explicit connection nothing retries it.
func (p *Pipeline) acquireAndExecute(ctx context.Context, qc *QueryContext, pinned *PinnedConnection) (*QueryResult, error) {
	if pinned != nil {
		qc.ConnectionID = pinned.ID
		execResult, err := p.executeOnce(ctx, qc)
		if err != nil {
			return nil, dberr.Wrap(err)
		}
		return p.shapeResult(execResult)
	}

	activePool := p.defaultPool
	for _, ic := range p.interceptors {
		alt, err := ic.BeforePoolConnection(ctx, qc)
		if err != nil {
			return nil, err
		}
		if alt != nil {
			activePool = alt
		}
	}

	var result *QueryResult
	retryErr := txn.RunStandaloneQuery(ctx, p.options.QueryRetryLimit, func(ctx context.Context) error {
		connID, release, err := activePool.Acquire(ctx)
		if err != nil {
			return err
		}
		defer release(false)

		qc.ConnectionID = connID
		qc.PoolID = activePool.ID()

		execResult, execErr := p.executeOnce(ctx, qc)
		if execErr != nil {
			wrapped := dberr.Wrap(execErr)
			if !dberr.IsTransactionRollbackClass(wrapped) {
				return markNonRetryable(wrapped)
			}
			return wrapped
		}

		shaped, shapeErr := p.shapeResult(execResult)
		if shapeErr != nil {
			return markNonRetryable(shapeErr)
		}
		result = shaped
		return nil
	})

	if retryErr != nil {
		return nil, unwrapNonRetryable(retryErr)
	}
	return result, nil
}

func (p *Pipeline) executeOnce(ctx context.Context, qc *QueryContext) (driver.ExecResult, error) {
	if p.options.StatementTimeout <= 0 {
		return p.drv.Execute(ctx, qc.ConnectionID, qc.Query.SQL, qc.Query.Values)
	}

	type outcome struct {
		res driver.ExecResult
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		res, err := p.drv.Execute(ctx, qc.ConnectionID, qc.Query.SQL, qc.Query.Values)
		done <- outcome{res, err}
	}()

	timer := time.NewTimer(p.options.StatementTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.res, out.err
	case <-timer.C:
		_ = p.drv.Cancel(ctx, qc.ConnectionID)
		out := <-done
		if out.err == nil {
			return out.res, nil
		}
		return out.res, out.err
	}
}

func (p *Pipeline) shapeResult(execResult driver.ExecResult) (*QueryResult, error) {
	rows := make([]sqlb.Row, 0, len(execResult.Rows))
	for _, raw := range execResult.Rows {
		row, err := rowparse.ParseRow(p.registry, execResult.Fields, raw)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	fieldNames := make([]string, len(execResult.Fields))
	for i, f := range execResult.Fields {
		fieldNames[i] = f.Name
	}

	notices := make([]string, len(execResult.Notices))
	for i, n := range execResult.Notices {
		notices[i] = n.Message
	}

	return &QueryResult{Command: execResult.Command, Fields: fieldNames, Rows: rows, Notices: notices}, nil
}

// nonRetryableError marks an error that must not be treated as a
// class-40 retry candidate even though it surfaces from inside
// [txn.RunStandaloneQuery]'s retry loop (e.g. a non-class-40 driver
// error, or a column-decode failure in shapeResult after a successful
// execution).
type nonRetryableError struct{ err error }

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

func markNonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

func unwrapNonRetryable(err error) error {
	if nr, ok := err.(*nonRetryableError); ok {
		return nr.err
	}
	if se := slonikerr.As(err); se != nil && se.Kind == slonikerr.KindTransactionRollback {
		if nr, ok := se.Cause.(*nonRetryableError); ok {
			return nr.err
		}
	}
	return err
}
