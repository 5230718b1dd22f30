// Copyright (c) 2026 Slonik Authors. All rights reserved.

// Package ctxutil provides helpers for interacting with values stored in [context.Context].
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/slonik/internal/platform/ctxkey"
	"github.com/taibuivan/slonik/internal/platform/ident"
)

// # Query Tracing

// WithQueryID returns a new context with the provided query ID attached.
func WithQueryID(ctx context.Context, id ident.QueryID) context.Context {
	return context.WithValue(ctx, ctxkey.KeyQueryID, id)
}

// GetQueryID retrieves the query ID from the context.
// Returns an empty string if not found.
func GetQueryID(ctx context.Context) ident.QueryID {
	id, _ := ctx.Value(ctxkey.KeyQueryID).(ident.QueryID)
	return id
}

// # Transaction Tracing

// WithTransactionID returns a new context with the provided transaction ID attached.
func WithTransactionID(ctx context.Context, id ident.TransactionID) context.Context {
	return context.WithValue(ctx, ctxkey.KeyTransactionID, id)
}

// GetTransactionID retrieves the transaction ID from the context.
// Returns an empty string if the context is not scoped to a transaction.
func GetTransactionID(ctx context.Context) ident.TransactionID {
	id, _ := ctx.Value(ctxkey.KeyTransactionID).(ident.TransactionID)
	return id
}

// # Structured Logging

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger retrieves the logger from the context.
// If no logger is found, it returns the global default logger.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}
