// Copyright (c) 2026 Slonik Authors. All rights reserved.

package engine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/slonik/driver"
	"github.com/taibuivan/slonik/engine"
	"github.com/taibuivan/slonik/internal/platform/ident"
	"github.com/taibuivan/slonik/pool"
	"github.com/taibuivan/slonik/rowparse"
	"github.com/taibuivan/slonik/slonikerr"
	"github.com/taibuivan/slonik/sqlb"
)

// queuedDriver replays a fixed sequence of ExecResult/error pairs, one per
// call to Execute, and otherwise satisfies driver.Driver with no-ops.
type queuedDriver struct {
	results      []driver.ExecResult
	errs         []error
	executeCalls int32
}

func (q *queuedDriver) Acquire(ctx context.Context, poolID ident.PoolID) (ident.ConnectionID, error) {
	return ident.NewConnectionID(), nil
}
func (q *queuedDriver) Release(ctx context.Context, id ident.ConnectionID, destroy bool) error {
	return nil
}
func (q *queuedDriver) Execute(ctx context.Context, id ident.ConnectionID, sql string, values []any) (driver.ExecResult, error) {
	i := atomic.AddInt32(&q.executeCalls, 1) - 1
	if int(i) >= len(q.results) {
		return driver.ExecResult{}, nil
	}
	return q.results[i], q.errs[i]
}
func (q *queuedDriver) ExecuteCursor(ctx context.Context, id ident.ConnectionID, sql string, values []any, batchSize int) (driver.Cursor, error) {
	return nil, nil
}
func (q *queuedDriver) CopyInBinary(ctx context.Context, id ident.ConnectionID, sql string, columnTypes []string, tuples [][]any) (int64, error) {
	return 0, nil
}
func (q *queuedDriver) Cancel(ctx context.Context, id ident.ConnectionID) error { return nil }
func (q *queuedDriver) SetSessionParameters(ctx context.Context, id ident.ConnectionID, params map[string]string) error {
	return nil
}
func (q *queuedDriver) OnNotice(id ident.ConnectionID, handler driver.NoticeHandler) {}
func (q *queuedDriver) OnError(id ident.ConnectionID, handler driver.ErrorHandler)   {}
func (q *queuedDriver) Close(ctx context.Context) error                             { return nil }

func newTestPipeline(t *testing.T, drv driver.Driver, queryRetryLimit int) *engine.Pipeline {
	t.Helper()
	p := pool.New(ident.NewPoolID(), drv, pool.Options{
		MaximumPoolSize:      4,
		ConnectionTimeout:    time.Second,
		ConnectionRetryLimit: 1,
	})
	reg := rowparse.NewRegistry()
	return engine.New(p, drv, reg, nil, engine.Options{QueryRetryLimit: queryRetryLimit})
}

func runQuery(t *testing.T, pl *engine.Pipeline, sql string) (*engine.QueryResult, error) {
	t.Helper()
	qc := engine.NewQueryContext(ident.NewPoolID(), "", "", engine.HandlePool, false)
	root := sqlb.MustSQL([]string{sql})
	return pl.Execute(context.Background(), qc, nil, root)
}

func TestPipeline_OneOnZeroRowsIsNotFound(t *testing.T) {
	drv := &queuedDriver{
		results: []driver.ExecResult{{Command: "SELECT", Fields: nil, Rows: nil}},
		errs:    []error{nil},
	}
	pl := newTestPipeline(t, drv, 0)

	result, err := runQuery(t, pl, "SELECT id FROM widgets WHERE id = 1")
	require.NoError(t, err)

	_, shapeErr := engine.One(result)
	require.Error(t, shapeErr)
	assert.True(t, slonikerr.Is(shapeErr, slonikerr.KindNotFound))
}

func TestPipeline_OneFirstOnTwoColumnsIsDataIntegrity(t *testing.T) {
	fields := []driver.FieldDescription{{Name: "id", TypeName: "int4"}, {Name: "name", TypeName: "text"}}
	drv := &queuedDriver{
		results: []driver.ExecResult{{Command: "SELECT", Fields: fields, Rows: [][]any{{int32(1), "widget"}}}},
		errs:    []error{nil},
	}
	pl := newTestPipeline(t, drv, 0)

	result, err := runQuery(t, pl, "SELECT id, name FROM widgets WHERE id = 1")
	require.NoError(t, err)

	_, shapeErr := engine.OneFirst(result)
	require.Error(t, shapeErr)
	assert.True(t, slonikerr.Is(shapeErr, slonikerr.KindDataIntegrity))
}

func TestPipeline_ManyReturnsAllRows(t *testing.T) {
	fields := []driver.FieldDescription{{Name: "id", TypeName: "int4"}}
	drv := &queuedDriver{
		results: []driver.ExecResult{{Command: "SELECT", Fields: fields, Rows: [][]any{{int32(1)}, {int32(2)}}}},
		errs:    []error{nil},
	}
	pl := newTestPipeline(t, drv, 0)

	result, err := runQuery(t, pl, "SELECT id FROM widgets")
	require.NoError(t, err)

	rows, shapeErr := engine.Many(result)
	require.NoError(t, shapeErr)
	assert.Len(t, rows, 2)
}

func TestPipeline_ExistsReadsWrappedBooleanColumn(t *testing.T) {
	fields := []driver.FieldDescription{{Name: "exists", TypeName: "bool"}}
	drv := &queuedDriver{
		results: []driver.ExecResult{{Command: "SELECT", Fields: fields, Rows: [][]any{{false}}}},
		errs:    []error{nil},
	}
	pl := newTestPipeline(t, drv, 0)

	inner := sqlb.MustSQL([]string{"SELECT 1 FROM widgets WHERE id = 1"})
	result, err := pl.Execute(context.Background(), engine.NewQueryContext(ident.NewPoolID(), "", "", engine.HandlePool, false), nil, sqlb.WrapExists(inner))
	require.NoError(t, err)

	exists, existsErr := engine.Exists(result)
	require.NoError(t, existsErr)
	assert.False(t, exists)
}

func TestPipeline_StandaloneQueryRetriesClass40ThenSucceeds(t *testing.T) {
	fields := []driver.FieldDescription{{Name: "id", TypeName: "int4"}}
	drv := &queuedDriver{
		results: []driver.ExecResult{{}, {Command: "SELECT", Fields: fields, Rows: [][]any{{int32(1)}}}},
		errs:    []error{&pgconn.PgError{Code: "40001", Message: "serialization failure"}, nil},
	}
	pl := newTestPipeline(t, drv, 2)

	result, err := runQuery(t, pl, "SELECT id FROM widgets WHERE id = 1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&drv.executeCalls))

	row, shapeErr := engine.One(result)
	require.NoError(t, shapeErr)
	assert.Equal(t, int32(1), row["id"])
}

func TestPipeline_StandaloneQueryRetryLimitExhausted(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40001", Message: "serialization failure"}
	drv := &queuedDriver{
		results: []driver.ExecResult{{}, {}, {}},
		errs:    []error{pgErr, pgErr, pgErr},
	}
	pl := newTestPipeline(t, drv, 2)

	_, err := runQuery(t, pl, "SELECT id FROM widgets WHERE id = 1")
	require.Error(t, err)
	assert.True(t, slonikerr.Is(err, slonikerr.KindTransactionRollback))
	assert.Equal(t, int32(3), atomic.LoadInt32(&drv.executeCalls))
}

func TestPipeline_NonClass40ErrorNotRetried(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "widgets_pkey", Message: "duplicate key"}
	drv := &queuedDriver{
		results: []driver.ExecResult{{}},
		errs:    []error{pgErr},
	}
	pl := newTestPipeline(t, drv, 3)

	_, err := runQuery(t, pl, "INSERT INTO widgets (id) VALUES (1)")
	require.Error(t, err)
	assert.True(t, slonikerr.Is(err, slonikerr.KindUniqueViolation))
	assert.Equal(t, int32(1), atomic.LoadInt32(&drv.executeCalls))
}

type shortCircuitInterceptor struct {
	engine.BaseInterceptor
	result engine.QueryResult
}

func (s shortCircuitInterceptor) BeforeQueryExecution(_ context.Context, _ *engine.QueryContext, _ engine.Query) (engine.Outcome, error) {
	return engine.ShortCircuit(s.result), nil
}

func TestPipeline_ShortCircuitSkipsDriverExecution(t *testing.T) {
	drv := &queuedDriver{}
	p := pool.New(ident.NewPoolID(), drv, pool.Options{MaximumPoolSize: 1, ConnectionTimeout: time.Second})
	reg := rowparse.NewRegistry()

	cached := engine.QueryResult{Command: "SELECT", Fields: []string{"id"}, Rows: []sqlb.Row{{"id": int32(42)}}}
	pl := engine.New(p, drv, reg, []engine.Interceptor{shortCircuitInterceptor{result: cached}}, engine.Options{})

	qc := engine.NewQueryContext(ident.NewPoolID(), "", "", engine.HandlePool, false)
	root := sqlb.MustSQL([]string{"SELECT id FROM widgets WHERE id = 1"})

	result, err := pl.Execute(context.Background(), qc, nil, root)
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&drv.executeCalls))

	row, shapeErr := engine.One(result)
	require.NoError(t, shapeErr)
	assert.Equal(t, int32(42), row["id"])
}

type replacingInterceptor struct {
	engine.BaseInterceptor
	replacement engine.Query
}

func (r replacingInterceptor) TransformQuery(_ context.Context, _ *engine.QueryContext, _ engine.Query) (engine.Outcome, error) {
	return engine.Replace(r.replacement), nil
}

type labelingInterceptor struct {
	engine.BaseInterceptor
}

func (labelingInterceptor) TransformRow(_ context.Context, _ *engine.QueryContext, row sqlb.Row) (sqlb.Row, error) {
	row["label"] = "widget"
	return row, nil
}

type requireLabelSchema struct{}

func (requireLabelSchema) Parse(row sqlb.Row) (sqlb.Row, error) {
	if _, ok := row["label"]; !ok {
		return nil, errors.New("label is required")
	}
	return row, nil
}

// TestPipeline_TransformRowRunsBeforeRowSchema locks in the step-9 order
// spec §4.G requires: a RowSchema must see the TransformRow chain's
// output, not the driver's raw row.
func TestPipeline_TransformRowRunsBeforeRowSchema(t *testing.T) {
	fields := []driver.FieldDescription{{Name: "id", TypeName: "int4"}}
	drv := &queuedDriver{
		results: []driver.ExecResult{{Command: "SELECT", Fields: fields, Rows: [][]any{{int32(1)}}}},
		errs:    []error{nil},
	}
	p := pool.New(ident.NewPoolID(), drv, pool.Options{MaximumPoolSize: 1, ConnectionTimeout: time.Second})
	reg := rowparse.NewRegistry()
	pl := engine.New(p, drv, reg, []engine.Interceptor{labelingInterceptor{}}, engine.Options{})

	qc := engine.NewQueryContext(ident.NewPoolID(), "", "", engine.HandlePool, false)
	root, err := sqlb.Type(requireLabelSchema{})([]string{"SELECT id FROM widgets"})
	require.NoError(t, err)

	result, err := pl.Execute(context.Background(), qc, nil, root)
	require.NoError(t, err)

	row, shapeErr := engine.One(result)
	require.NoError(t, shapeErr)
	assert.Equal(t, "widget", row["label"])
}

func TestPipeline_TransformQueryReplacesStatement(t *testing.T) {
	drv := &queuedDriver{
		results: []driver.ExecResult{{Command: "SELECT"}},
		errs:    []error{nil},
	}
	p := pool.New(ident.NewPoolID(), drv, pool.Options{MaximumPoolSize: 1, ConnectionTimeout: time.Second})
	reg := rowparse.NewRegistry()

	replacement := engine.Query{SQL: "SELECT 1", Values: nil}
	pl := engine.New(p, drv, reg, []engine.Interceptor{replacingInterceptor{replacement: replacement}}, engine.Options{})

	qc := engine.NewQueryContext(ident.NewPoolID(), "", "", engine.HandlePool, false)
	root := sqlb.MustSQL([]string{"SELECT id FROM widgets"})

	_, err := pl.Execute(context.Background(), qc, nil, root)
	require.NoError(t, err)
	assert.Equal(t, replacement.SQL, qc.Query.SQL)
}
