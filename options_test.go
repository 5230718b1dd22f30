// Copyright (c) 2026 Slonik Authors. All rights reserved.

package slonik_test

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/slonik"
	"github.com/taibuivan/slonik/engine"
)

// fakeInterceptor is a minimal engine.Interceptor test double used only to
// assert registration order and accumulation across [slonik.WithInterceptors]
// calls.
type fakeInterceptor struct {
	engine.BaseInterceptor
	name string
}

func TestNewOptions_Defaults(t *testing.T) {
	o := slonik.NewOptions()

	assert.Zero(t, o.AcquireRateLimit)
	assert.True(t, o.CaptureStackTrace)
	assert.Equal(t, 3, o.ConnectionRetryLimit)
	assert.Equal(t, 5*time.Second, o.ConnectionTimeout)
	assert.Equal(t, 60*time.Second, o.IdleInTransactionSessionTimeout)
	assert.Equal(t, 5*time.Second, o.IdleTimeout)
	assert.Equal(t, int64(10), o.MaximumPoolSize)
	assert.Equal(t, 5, o.QueryRetryLimit)
	assert.Equal(t, 60*time.Second, o.StatementTimeout)
	assert.Equal(t, 5, o.TransactionRetryLimit)
	assert.Nil(t, o.SSL)
	assert.Empty(t, o.Interceptors)
	assert.Empty(t, o.TypeParsers)
}

func TestNewOptions_OverridesApplyInOrder(t *testing.T) {
	cfg := &tls.Config{ServerName: "example.invalid"}

	o := slonik.NewOptions(
		slonik.WithAcquireRateLimit(50, 10),
		slonik.WithCaptureStackTrace(false),
		slonik.WithConnectionRetryLimit(1),
		slonik.WithConnectionTimeout(slonik.Disable),
		slonik.WithMaximumPoolSize(25),
		slonik.WithQueryRetryLimit(0),
		slonik.WithSSL(cfg),
		slonik.WithStatementTimeout(2*time.Second),
		slonik.WithTransactionRetryLimit(1),
	)

	assert.Equal(t, 50.0, o.AcquireRateLimit)
	assert.Equal(t, 10, o.AcquireBurst)
	assert.False(t, o.CaptureStackTrace)
	assert.Equal(t, 1, o.ConnectionRetryLimit)
	assert.Equal(t, slonik.Disable, o.ConnectionTimeout)
	assert.Equal(t, int64(25), o.MaximumPoolSize)
	assert.Equal(t, 0, o.QueryRetryLimit)
	assert.Same(t, cfg, o.SSL)
	assert.Equal(t, 2*time.Second, o.StatementTimeout)
	assert.Equal(t, 1, o.TransactionRetryLimit)
}

func TestWithInterceptors_AppendsAcrossCalls(t *testing.T) {
	a, b := fakeInterceptor{name: "a"}, fakeInterceptor{name: "b"}

	o := slonik.NewOptions(
		slonik.WithInterceptors(a),
		slonik.WithInterceptors(b),
	)

	assert.Len(t, o.Interceptors, 2)
	assert.Equal(t, a, o.Interceptors[0])
	assert.Equal(t, b, o.Interceptors[1])
}
