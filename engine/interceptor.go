// Copyright (c) 2026 Slonik Authors. All rights reserved.

package engine

import (
	"context"

	"github.com/taibuivan/slonik/pool"
	"github.com/taibuivan/slonik/sqlb"
)

// QueryResult is the raw, row-major result of one pipeline execution,
// before shape functions apply their cardinality rules.
type QueryResult struct {
	Command string
	Fields  []string
	Rows    []sqlb.Row
	Notices []string
}

// Outcome is the interceptor hook return-variant sum type spec §9 calls
// for ("Interceptor chain with mixed return semantics"). The pipeline
// type-switches on it instead of pattern-matching on ad hoc nil checks.
type Outcome interface {
	outcome()
}

// ContinueOutcome means "proceed with the pipeline unchanged."
type ContinueOutcome struct{}

func (ContinueOutcome) outcome() {}

// ShortCircuitOutcome supplies a synthetic [QueryResult] that skips
// driver execution entirely — the beforeQueryExecution hook's contract,
// used by mocks and caches (spec §4.G step 5).
type ShortCircuitOutcome struct {
	Result QueryResult
}

func (ShortCircuitOutcome) outcome() {}

// ReplaceOutcome supplies a replacement [Query] — the transformQuery
// hook's contract.
type ReplaceOutcome struct {
	Query Query
}

func (ReplaceOutcome) outcome() {}

// Continue is the [ContinueOutcome] singleton value.
func Continue() Outcome { return ContinueOutcome{} }

// ShortCircuit wraps result as a [ShortCircuitOutcome].
func ShortCircuit(result QueryResult) Outcome { return ShortCircuitOutcome{Result: result} }

// Replace wraps query as a [ReplaceOutcome].
func Replace(query Query) Outcome { return ReplaceOutcome{Query: query} }

// Interceptor bundles the optional hooks the execution pipeline invokes
// at the fixed points spec §4.G enumerates. Embed [BaseInterceptor] to
// get a no-op default for every hook and override only what you need —
// spec §9's "default no-op implementations" design note.
type Interceptor interface {
	// BeforeTransformQuery runs before interpretation. Observational.
	BeforeTransformQuery(ctx context.Context, qc *QueryContext, query sqlb.Raw) error

	// TransformQuery runs after interpretation, once per registered
	// interceptor, each receiving the previous hook's output. Returning
	// [ReplaceOutcome] substitutes qc.Query for the rest of the chain;
	// any other outcome leaves it unchanged.
	TransformQuery(ctx context.Context, qc *QueryContext, query Query) (Outcome, error)

	// BeforeQueryExecution runs after TransformQuery. The first
	// interceptor to return [ShortCircuitOutcome] aborts driver execution
	// and supplies its Result directly.
	BeforeQueryExecution(ctx context.Context, qc *QueryContext, query Query) (Outcome, error)

	// BeforePoolConnection may reroute the query to a different pool. A
	// nil return leaves the pool unchanged.
	BeforePoolConnection(ctx context.Context, qc *QueryContext) (*pool.Pool, error)

	// QueryExecutionError runs when driver.Execute (or its streaming/copy
	// variant) fails. A nil return lets the original error propagate; a
	// non-nil return is propagated in its place.
	QueryExecutionError(ctx context.Context, qc *QueryContext, query Query, err error) error

	// BeforeQueryResult runs once the raw result is available, before row
	// transformation. Observational.
	BeforeQueryResult(ctx context.Context, qc *QueryContext, query Query, result *QueryResult) error

	// TransformRow runs once per row, identity unless overridden — part
	// of the row-parsing pipeline (spec §4.C step 2).
	TransformRow(ctx context.Context, qc *QueryContext, row sqlb.Row) (sqlb.Row, error)

	// AfterQueryExecution runs once the shaped result is fully
	// materialised. Observational.
	AfterQueryExecution(ctx context.Context, qc *QueryContext, query Query, result *QueryResult) error
}

// BaseInterceptor implements [Interceptor] with a no-op/Continue default
// for every hook. Real interceptors embed it and override selectively.
type BaseInterceptor struct{}

func (BaseInterceptor) BeforeTransformQuery(context.Context, *QueryContext, sqlb.Raw) error {
	return nil
}

func (BaseInterceptor) TransformQuery(context.Context, *QueryContext, Query) (Outcome, error) {
	return Continue(), nil
}

func (BaseInterceptor) BeforeQueryExecution(context.Context, *QueryContext, Query) (Outcome, error) {
	return Continue(), nil
}

func (BaseInterceptor) BeforePoolConnection(context.Context, *QueryContext) (*pool.Pool, error) {
	return nil, nil
}

func (BaseInterceptor) QueryExecutionError(context.Context, *QueryContext, Query, error) error {
	return nil
}

func (BaseInterceptor) BeforeQueryResult(context.Context, *QueryContext, Query, *QueryResult) error {
	return nil
}

func (BaseInterceptor) TransformRow(_ context.Context, _ *QueryContext, row sqlb.Row) (sqlb.Row, error) {
	return row, nil
}

func (BaseInterceptor) AfterQueryExecution(context.Context, *QueryContext, Query, *QueryResult) error {
	return nil
}
