// Copyright (c) 2026 Slonik Authors. All rights reserved.

package cacheinterceptor_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/slonik/cacheinterceptor"
	"github.com/taibuivan/slonik/engine"
	"github.com/taibuivan/slonik/internal/platform/ident"
	"github.com/taibuivan/slonik/sqlb"
)

func newTestInterceptor(t *testing.T) *cacheinterceptor.Interceptor {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return cacheinterceptor.New(client, "test")
}

func newQueryContext() *engine.QueryContext {
	return engine.NewQueryContext(ident.NewPoolID(), "", "", engine.HandlePool, false)
}

func TestInterceptor_MissThenHit(t *testing.T) {
	ic := newTestInterceptor(t)
	ctx := context.Background()

	qc := newQueryContext()
	cacheinterceptor.WithTTL(qc, time.Minute)
	query := engine.Query{SQL: "SELECT id FROM widgets WHERE id = $1", Values: []any{1}}

	outcome, err := ic.BeforeQueryExecution(ctx, qc, query)
	require.NoError(t, err)
	assert.IsType(t, engine.ContinueOutcome{}, outcome)

	result := &engine.QueryResult{Command: "SELECT", Fields: []string{"id"}, Rows: []sqlb.Row{{"id": float64(1)}}}
	require.NoError(t, ic.AfterQueryExecution(ctx, qc, query, result))

	qc2 := newQueryContext()
	cacheinterceptor.WithTTL(qc2, time.Minute)
	outcome2, err := ic.BeforeQueryExecution(ctx, qc2, query)
	require.NoError(t, err)

	sc, ok := outcome2.(engine.ShortCircuitOutcome)
	require.True(t, ok)
	assert.Equal(t, "SELECT", sc.Result.Command)
	assert.Equal(t, []sqlb.Row{{"id": float64(1)}}, sc.Result.Rows)
}

func TestInterceptor_UntaggedQueryNeverCached(t *testing.T) {
	ic := newTestInterceptor(t)
	ctx := context.Background()

	qc := newQueryContext()
	query := engine.Query{SQL: "SELECT id FROM widgets", Values: nil}

	outcome, err := ic.BeforeQueryExecution(ctx, qc, query)
	require.NoError(t, err)
	assert.IsType(t, engine.ContinueOutcome{}, outcome)

	result := &engine.QueryResult{Command: "SELECT", Fields: []string{"id"}, Rows: []sqlb.Row{{"id": float64(1)}}}
	require.NoError(t, ic.AfterQueryExecution(ctx, qc, query, result))

	qc2 := newQueryContext()
	outcome2, err := ic.BeforeQueryExecution(ctx, qc2, query)
	require.NoError(t, err)
	assert.IsType(t, engine.ContinueOutcome{}, outcome2)
}

func TestInterceptor_DifferentValuesDifferentKeys(t *testing.T) {
	ic := newTestInterceptor(t)
	ctx := context.Background()

	qc := newQueryContext()
	cacheinterceptor.WithTTL(qc, time.Minute)
	queryA := engine.Query{SQL: "SELECT id FROM widgets WHERE id = $1", Values: []any{1}}
	require.NoError(t, ic.AfterQueryExecution(ctx, qc, queryA, &engine.QueryResult{Command: "SELECT", Rows: []sqlb.Row{{"id": float64(1)}}}))

	qc2 := newQueryContext()
	cacheinterceptor.WithTTL(qc2, time.Minute)
	queryB := engine.Query{SQL: "SELECT id FROM widgets WHERE id = $1", Values: []any{2}}

	outcome, err := ic.BeforeQueryExecution(ctx, qc2, queryB)
	require.NoError(t, err)
	assert.IsType(t, engine.ContinueOutcome{}, outcome)
}
