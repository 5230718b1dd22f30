// Copyright (c) 2026 Slonik Authors. All rights reserved.

package streaming_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/slonik/driver"
	"github.com/taibuivan/slonik/internal/platform/ident"
	"github.com/taibuivan/slonik/rowparse"
	"github.com/taibuivan/slonik/sqlb"
	"github.com/taibuivan/slonik/streaming"
)

type fakeCursor struct {
	batches []driver.RowBatch
	i       int
	closed  bool
}

func (c *fakeCursor) Next(ctx context.Context) (driver.RowBatch, bool, error) {
	if c.i >= len(c.batches) {
		return driver.RowBatch{}, false, nil
	}
	batch := c.batches[c.i]
	c.i++
	return batch, c.i < len(c.batches), nil
}

func (c *fakeCursor) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

type cursorDriver struct {
	cursor *fakeCursor
}

func (d *cursorDriver) Acquire(ctx context.Context, poolID ident.PoolID) (ident.ConnectionID, error) {
	return "", nil
}
func (d *cursorDriver) Release(ctx context.Context, id ident.ConnectionID, destroy bool) error {
	return nil
}
func (d *cursorDriver) Execute(ctx context.Context, id ident.ConnectionID, sql string, values []any) (driver.ExecResult, error) {
	return driver.ExecResult{}, nil
}
func (d *cursorDriver) ExecuteCursor(ctx context.Context, id ident.ConnectionID, sql string, values []any, batchSize int) (driver.Cursor, error) {
	return d.cursor, nil
}
func (d *cursorDriver) CopyInBinary(ctx context.Context, id ident.ConnectionID, sql string, columnTypes []string, tuples [][]any) (int64, error) {
	return 0, nil
}
func (d *cursorDriver) Cancel(ctx context.Context, id ident.ConnectionID) error { return nil }
func (d *cursorDriver) SetSessionParameters(ctx context.Context, id ident.ConnectionID, params map[string]string) error {
	return nil
}
func (d *cursorDriver) OnNotice(id ident.ConnectionID, handler driver.NoticeHandler) {}
func (d *cursorDriver) OnError(id ident.ConnectionID, handler driver.ErrorHandler)   {}
func (d *cursorDriver) Close(ctx context.Context) error                             { return nil }

func TestStream_YieldsAllRowsAndReleases(t *testing.T) {
	fields := []driver.FieldDescription{{Name: "id", TypeName: "int4"}}
	cursor := &fakeCursor{batches: []driver.RowBatch{
		{Fields: fields, Rows: [][]any{{int32(1)}, {int32(2)}}},
		{Fields: fields, Rows: [][]any{{int32(3)}}},
	}}
	drv := &cursorDriver{cursor: cursor}
	reg := rowparse.NewRegistry()

	var seen []any
	released := false
	release := func(destroy bool) { released = true; assert.False(t, destroy) }

	err := streaming.Stream(context.Background(), drv, reg, "conn-1", release, 2, "SELECT id FROM widgets", nil, func(row sqlb.Row) error {
		seen = append(seen, row["id"])
		return nil
	})

	require.NoError(t, err)
	assert.True(t, cursor.closed)
	assert.True(t, released)
	assert.Equal(t, []any{int32(1), int32(2), int32(3)}, seen)
}

func TestStream_SinkFailureStillReleases(t *testing.T) {
	fields := []driver.FieldDescription{{Name: "id", TypeName: "int4"}}
	cursor := &fakeCursor{batches: []driver.RowBatch{
		{Fields: fields, Rows: [][]any{{int32(1)}, {int32(2)}}},
	}}
	drv := &cursorDriver{cursor: cursor}
	reg := rowparse.NewRegistry()

	released := false
	release := func(destroy bool) { released = true }
	sinkErr := errors.New("sink boom")

	err := streaming.Stream(context.Background(), drv, reg, "conn-1", release, 10, "SELECT id FROM widgets", nil, func(row sqlb.Row) error {
		return sinkErr
	})

	require.ErrorIs(t, err, sinkErr)
	assert.True(t, cursor.closed)
	assert.True(t, released)
}

func TestStream_CancellationReleasesAndDestroys(t *testing.T) {
	fields := []driver.FieldDescription{{Name: "id", TypeName: "int4"}}
	cursor := &fakeCursor{batches: []driver.RowBatch{
		{Fields: fields, Rows: [][]any{{int32(1)}}},
		{Fields: fields, Rows: [][]any{{int32(2)}}},
	}}
	drv := &cursorDriver{cursor: cursor}
	reg := rowparse.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	destroyed := false
	release := func(destroy bool) { destroyed = destroy }

	err := streaming.Stream(ctx, drv, reg, "conn-1", release, 10, "SELECT id FROM widgets", nil, func(row sqlb.Row) error {
		cancel()
		return nil
	})

	require.Error(t, err)
	assert.True(t, cursor.closed)
	assert.True(t, destroyed)
}
