// Copyright (c) 2026 Slonik Authors. All rights reserved.

/*
Package cacheinterceptor implements an [engine.Interceptor] backed by
Redis that short-circuits a query with a previously cached [engine.QueryResult]
— the "used by mocks and caches" case spec §4.G step 5 names for
beforeQueryExecution's ShortCircuit outcome.

Caching is opt-in per query: only queries tagged via [WithTTL] in the
query context's Sandbox are cached, since most statements (inserts,
updates, anything with a side effect) must never be served from cache.
*/
package cacheinterceptor

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/slonik/engine"
	"github.com/taibuivan/slonik/sqlb"
)

// sandboxTTLKey is the QueryContext.Sandbox key a caller sets (via
// [WithTTL]) to opt a query into caching.
const sandboxTTLKey = "cacheinterceptor.ttl"

// WithTTL opts the query this QueryContext belongs to into caching for
// the given duration by writing ttl into qc.Sandbox. It must run before
// BeforeQueryExecution, e.g. from an earlier interceptor hook.
func WithTTL(qc *engine.QueryContext, ttl time.Duration) {
	qc.Sandbox[sandboxTTLKey] = ttl
}

// cachedResult is the JSON-serializable projection of [engine.QueryResult]
// stored in Redis.
type cachedResult struct {
	Command string     `json:"command"`
	Fields  []string   `json:"fields"`
	Rows    []sqlb.Row `json:"rows"`
	Notices []string   `json:"notices"`
}

// Interceptor caches query results in Redis, keyed by the interpreted
// SQL text and bind values.
type Interceptor struct {
	engine.BaseInterceptor
	client    *redis.Client
	keyPrefix string
}

// New constructs a cache [Interceptor] backed by client. Keys are
// namespaced under keyPrefix to let multiple pools share one Redis
// instance without key collisions.
func New(client *redis.Client, keyPrefix string) *Interceptor {
	return &Interceptor{client: client, keyPrefix: keyPrefix}
}

// BeforeQueryExecution checks Redis for a cached result under this
// query's cache key; a hit short-circuits driver execution entirely.
func (i *Interceptor) BeforeQueryExecution(ctx context.Context, qc *engine.QueryContext, query engine.Query) (engine.Outcome, error) {
	if _, ok := qc.Sandbox[sandboxTTLKey]; !ok {
		return engine.Continue(), nil
	}

	key := i.cacheKey(query)
	raw, err := i.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		qc.Sandbox[cacheKeySandboxKey] = key
		return engine.Continue(), nil
	}
	if err != nil {
		// A cache-layer failure must never fail the query itself; fall
		// through to the driver as if nothing were cached.
		qc.Sandbox[cacheKeySandboxKey] = key
		return engine.Continue(), nil
	}

	var cached cachedResult
	if jsonErr := json.Unmarshal(raw, &cached); jsonErr != nil {
		qc.Sandbox[cacheKeySandboxKey] = key
		return engine.Continue(), nil
	}

	return engine.ShortCircuit(engine.QueryResult{
		Command: cached.Command,
		Fields:  cached.Fields,
		Rows:    cached.Rows,
		Notices: cached.Notices,
	}), nil
}

// cacheKeySandboxKey is where BeforeQueryExecution stashes the computed
// cache key on a miss, for AfterQueryExecution to reuse. On a hit no key
// is stashed and AfterQueryExecution derives it again.
const cacheKeySandboxKey = "cacheinterceptor.key"

// AfterQueryExecution writes the result to Redis whenever the query
// opted in via [WithTTL], under the key BeforeQueryExecution recorded or,
// if none was recorded, a freshly derived one. A result that was served
// from cache is written back as well, which renews its TTL.
func (i *Interceptor) AfterQueryExecution(ctx context.Context, qc *engine.QueryContext, query engine.Query, result *engine.QueryResult) error {
	ttlVal, ok := qc.Sandbox[sandboxTTLKey]
	if !ok {
		return nil
	}
	ttl, ok := ttlVal.(time.Duration)
	if !ok {
		return nil
	}

	key, ok := qc.Sandbox[cacheKeySandboxKey].(string)
	if !ok {
		key = i.cacheKey(query)
	}

	payload, err := json.Marshal(cachedResult{
		Command: result.Command,
		Fields:  result.Fields,
		Rows:    result.Rows,
		Notices: result.Notices,
	})
	if err != nil {
		return nil
	}

	// Best-effort: a cache write failure must never fail the query that
	// already succeeded against the database.
	_ = i.client.Set(ctx, key, payload, ttl).Err()
	return nil
}

// cacheKey derives a compact, stable 64-bit key from the
// interpreted SQL text and bind values via xxhash — the same hashing
// library go-redis itself depends on for its internal consistent-hashing
// ring, reused here for its speed on short-lived keys.
func (i *Interceptor) cacheKey(query engine.Query) string {
	payload, _ := json.Marshal(struct {
		SQL    string `json:"sql"`
		Values []any  `json:"values"`
	}{SQL: query.SQL, Values: query.Values})
	return i.keyPrefix + ":" + strconv.FormatUint(xxhash.Sum64(payload), 16)
}
