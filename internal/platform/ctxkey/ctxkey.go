// Copyright (c) 2026 Slonik Authors. All rights reserved.

// Package ctxkey defines typed context keys used by the engine and its
// interceptors.
//
// # Safety
//
// Using a private, unexported type for keys prevents collisions with
// third-party packages that might also use context for storage.
package ctxkey

// key is an unexported type used for context keys to ensure type safety.
//
// # Collision Prevention
//
// Even if another package uses "query_id" as a string key, it will not
// collide with this key type because Go's [context.Context] uses both the
// value AND the type for lookups.
type key string

const (
	// KeyQueryID is the context key for the current [ident.QueryID], set
	// at the start of the execution pipeline so interceptors and loggers
	// downstream can correlate log lines to one query.
	KeyQueryID key = "query_id"

	// KeyTransactionID is the context key for the current
	// [ident.TransactionID], set through ctxutil.WithTransactionID. The
	// engine's own transaction handles do not set it.
	KeyTransactionID key = "transaction_id"

	// KeyLogger is the context key for the per-call [*log/slog.Logger].
	KeyLogger key = "logger"
)
