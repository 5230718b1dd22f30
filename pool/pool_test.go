// Copyright (c) 2026 Slonik Authors. All rights reserved.

package pool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/slonik/driver"
	"github.com/taibuivan/slonik/internal/platform/ident"
	"github.com/taibuivan/slonik/pool"
	"github.com/taibuivan/slonik/slonikerr"
)

// fakeDriver is a minimal driver.Driver test double tracking acquire count
// and honouring a configurable failure count before succeeding.
type fakeDriver struct {
	failuresBeforeSuccess int32
	acquireCount          int32
}

func (f *fakeDriver) Acquire(ctx context.Context, poolID ident.PoolID) (ident.ConnectionID, error) {
	atomic.AddInt32(&f.acquireCount, 1)
	if atomic.LoadInt32(&f.failuresBeforeSuccess) > 0 {
		atomic.AddInt32(&f.failuresBeforeSuccess, -1)
		return "", errors.New("transient dial failure")
	}
	return ident.NewConnectionID(), nil
}
func (f *fakeDriver) Release(ctx context.Context, id ident.ConnectionID, destroy bool) error {
	return nil
}
func (f *fakeDriver) Execute(ctx context.Context, id ident.ConnectionID, sql string, values []any) (driver.ExecResult, error) {
	return driver.ExecResult{}, nil
}
func (f *fakeDriver) ExecuteCursor(ctx context.Context, id ident.ConnectionID, sql string, values []any, batchSize int) (driver.Cursor, error) {
	return nil, nil
}
func (f *fakeDriver) CopyInBinary(ctx context.Context, id ident.ConnectionID, sql string, columnTypes []string, tuples [][]any) (int64, error) {
	return 0, nil
}
func (f *fakeDriver) Cancel(ctx context.Context, id ident.ConnectionID) error { return nil }
func (f *fakeDriver) SetSessionParameters(ctx context.Context, id ident.ConnectionID, params map[string]string) error {
	return nil
}
func (f *fakeDriver) OnNotice(id ident.ConnectionID, handler driver.NoticeHandler) {}
func (f *fakeDriver) OnError(id ident.ConnectionID, handler driver.ErrorHandler)   {}
func (f *fakeDriver) Close(ctx context.Context) error                             { return nil }

func newTestPool(drv driver.Driver, maxSize int64) *pool.Pool {
	return pool.New(ident.NewPoolID(), drv, pool.Options{
		MaximumPoolSize:      maxSize,
		ConnectionTimeout:    time.Second,
		ConnectionRetryLimit: 3,
	})
}

func TestPool_AcquireRelease(t *testing.T) {
	drv := &fakeDriver{}
	p := newTestPool(drv, 2)

	_, release, err := p.Acquire(context.Background())
	require.NoError(t, err)

	state := p.State()
	assert.Equal(t, int64(1), state.Active)
	assert.False(t, state.Ended)

	release(false)

	state = p.State()
	assert.Equal(t, int64(0), state.Active)
}

func TestPool_RetriesTransientFailures(t *testing.T) {
	drv := &fakeDriver{failuresBeforeSuccess: 2}
	p := newTestPool(drv, 2)

	_, release, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer release(false)

	assert.Equal(t, int32(3), atomic.LoadInt32(&drv.acquireCount))
}

func TestPool_RetryLimitExhausted(t *testing.T) {
	drv := &fakeDriver{failuresBeforeSuccess: 100}
	p := newTestPool(drv, 2)

	_, _, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, slonikerr.Is(err, slonikerr.KindConnection))
}

func TestPool_BoundsRespected(t *testing.T) {
	drv := &fakeDriver{}
	p := newTestPool(drv, 1)

	_, release1, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err = p.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, slonikerr.Is(err, slonikerr.KindConnection))

	release1(false)
}

func TestPool_AcquireRateLimitThrottlesAcquisition(t *testing.T) {
	drv := &fakeDriver{}
	p := pool.New(ident.NewPoolID(), drv, pool.Options{
		MaximumPoolSize:      2,
		ConnectionTimeout:    time.Second,
		ConnectionRetryLimit: 0,
		AcquireRateLimit:     1,
		AcquireBurst:         1,
	})

	_, release1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer release1(false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err = p.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, slonikerr.Is(err, slonikerr.KindConnection))
}

func TestPool_EndRejectsFurtherAcquisitions(t *testing.T) {
	drv := &fakeDriver{}
	p := newTestPool(drv, 2)

	require.NoError(t, p.End(context.Background()))

	_, _, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, slonikerr.Is(err, slonikerr.KindPoolEnded))
	assert.True(t, p.State().Ended)
}

func TestPool_EndDrainsActiveConnections(t *testing.T) {
	drv := &fakeDriver{}
	p := newTestPool(drv, 2)

	_, release, err := p.Acquire(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		release(false)
	}()

	require.NoError(t, p.End(context.Background()))
	wg.Wait()
}
