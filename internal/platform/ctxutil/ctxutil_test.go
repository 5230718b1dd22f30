// Copyright (c) 2026 Slonik Authors. All rights reserved.

package ctxutil_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/slonik/internal/platform/ctxutil"
	"github.com/taibuivan/slonik/internal/platform/ident"
)

/*
TestContext_QueryID verifies that query IDs can be injected and retrieved.
*/
func TestContext_QueryID(t *testing.T) {
	ctx := context.Background()
	queryID := ident.NewQueryID()

	assert.Empty(t, ctxutil.GetQueryID(ctx))

	ctx = ctxutil.WithQueryID(ctx, queryID)
	assert.Equal(t, queryID, ctxutil.GetQueryID(ctx))
}

/*
TestContext_TransactionID verifies that transaction IDs can be injected and
retrieved, and are absent outside of a transaction.
*/
func TestContext_TransactionID(t *testing.T) {
	ctx := context.Background()
	txID := ident.NewTransactionID()

	assert.Empty(t, ctxutil.GetTransactionID(ctx))

	ctx = ctxutil.WithTransactionID(ctx, txID)
	assert.Equal(t, txID, ctxutil.GetTransactionID(ctx))
}

/*
TestContext_Logger verifies that a custom logger can be stored in context.
*/
func TestContext_Logger(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	ctx = ctxutil.WithLogger(ctx, logger)
	assert.Equal(t, logger, ctxutil.GetLogger(ctx))
}
