// Copyright (c) 2026 Slonik Authors. All rights reserved.

/*
Package slonik is a safe SQL composition and query-engine client for
PostgreSQL: a token-algebra SQL builder ([sqlb]) whose output only ever
reaches the wire as `$k`-placeholder text and a flat bind-value list, a
typed row parser ([rowparse]), and a connection/transaction lifecycle
manager ([pool], [txn], [engine]) with interceptors and automatic retry
of SQLSTATE class-40 (transaction rollback) failures.

[DatabasePool] is the top-level entry point: it owns the physical
[*pgxpool.Pool], the [pool.Pool] manager multiplexing callers onto it,
and the [engine.Pipeline] every query runs through.
*/
package slonik

import (
	"crypto/tls"
	"time"

	"github.com/taibuivan/slonik/engine"
	"github.com/taibuivan/slonik/rowparse"
)

// Disable is the sentinel meaning "no timeout" for any Options duration
// field, per spec §6's `DISABLE` sentinel.
const Disable time.Duration = 0

// Options is the complete enumerated configuration set of spec §6, with
// the defaults spec §6 names. Construct one with [NewOptions] and zero
// or more [Option] functions; the defaults apply to any field left
// unset.
type Options struct {
	AcquireRateLimit                float64
	AcquireBurst                    int
	CaptureStackTrace               bool
	ConnectionRetryLimit            int
	ConnectionTimeout               time.Duration
	IdleInTransactionSessionTimeout time.Duration
	IdleTimeout                     time.Duration
	Interceptors                    []engine.Interceptor
	MaximumPoolSize                 int64
	QueryRetryLimit                 int
	SSL                             *tls.Config
	StatementTimeout                time.Duration
	TransactionRetryLimit           int
	TypeParsers                     []rowparse.TypeParser
}

// Option mutates an [Options] under construction.
type Option func(*Options)

// NewOptions builds an [Options] seeded with spec §6's defaults, then
// applies opts in order.
func NewOptions(opts ...Option) Options {
	o := Options{
		CaptureStackTrace:               true,
		ConnectionRetryLimit:            3,
		ConnectionTimeout:               5 * time.Second,
		IdleInTransactionSessionTimeout: 60 * time.Second,
		IdleTimeout:                     5 * time.Second,
		MaximumPoolSize:                 10,
		QueryRetryLimit:                 5,
		StatementTimeout:                60 * time.Second,
		TransactionRetryLimit:           5,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithCaptureStackTrace toggles capturing a trimmed call-site stack trace
// per query (spec §6 default: true).
func WithCaptureStackTrace(capture bool) Option {
	return func(o *Options) { o.CaptureStackTrace = capture }
}

// WithAcquireRateLimit caps connection acquisition to rps per second
// with the given burst allowance, token-bucket style. Pass rps <= 0 (the
// default) to leave acquisition unthrottled.
func WithAcquireRateLimit(rps float64, burst int) Option {
	return func(o *Options) {
		o.AcquireRateLimit = rps
		o.AcquireBurst = burst
	}
}

// WithConnectionRetryLimit sets how many transient acquisition failures
// are retried before surfacing [slonikerr.KindConnection].
func WithConnectionRetryLimit(limit int) Option {
	return func(o *Options) { o.ConnectionRetryLimit = limit }
}

// WithConnectionTimeout bounds one acquisition attempt, retries included.
// Pass [Disable] to wait indefinitely.
func WithConnectionTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectionTimeout = d }
}

// WithIdleInTransactionSessionTimeout sets the server-side
// idle_in_transaction_session_timeout applied to every physical
// connection. Pass [Disable] to leave it unset.
func WithIdleInTransactionSessionTimeout(d time.Duration) Option {
	return func(o *Options) { o.IdleInTransactionSessionTimeout = d }
}

// WithIdleTimeout bounds how long an idle physical connection is kept
// before pgxpool reaps it. Pass [Disable] to disable idle reaping.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *Options) { o.IdleTimeout = d }
}

// WithInterceptors registers interceptors, run in the given order at
// every hook point the execution pipeline exposes.
func WithInterceptors(interceptors ...engine.Interceptor) Option {
	return func(o *Options) { o.Interceptors = append(o.Interceptors, interceptors...) }
}

// WithMaximumPoolSize bounds concurrently active physical connections.
func WithMaximumPoolSize(size int64) Option {
	return func(o *Options) { o.MaximumPoolSize = size }
}

// WithQueryRetryLimit sets how many times a query issued through the
// [DatabasePool] handle is retried on SQLSTATE class-40 failures. Queries
// on an explicit connection are not retried.
func WithQueryRetryLimit(limit int) Option {
	return func(o *Options) { o.QueryRetryLimit = limit }
}

// WithSSL sets the TLS configuration used for the underlying connection.
func WithSSL(cfg *tls.Config) Option {
	return func(o *Options) { o.SSL = cfg }
}

// WithStatementTimeout bounds how long a single statement may run,
// enforced both server-side (a session GUC) and client-side (a watchdog
// that issues driver.Cancel then awaits the resulting failure). Pass
// [Disable] to leave it unbounded.
func WithStatementTimeout(d time.Duration) Option {
	return func(o *Options) { o.StatementTimeout = d }
}

// WithTransactionRetryLimit sets how many times a whole top-level
// transaction is retried on SQLSTATE class-40 failures.
func WithTransactionRetryLimit(limit int) Option {
	return func(o *Options) { o.TransactionRetryLimit = limit }
}

// WithTypeParsers registers additional row-value parsers on top of the
// registry's built-ins, overriding any built-in for the same OID/name.
func WithTypeParsers(parsers ...rowparse.TypeParser) Option {
	return func(o *Options) { o.TypeParsers = append(o.TypeParsers, parsers...) }
}
