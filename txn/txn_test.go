// Copyright (c) 2026 Slonik Authors. All rights reserved.

package txn_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/slonik/internal/platform/ident"
	"github.com/taibuivan/slonik/txn"
)

func recordingExecutor(statements *[]string) txn.Executor {
	return func(ctx context.Context, sql string) error {
		*statements = append(*statements, sql)
		return nil
	}
}

// TestTransaction_S6 covers spec scenario S6: a handler that fails once
// with SQLSTATE 40001 then succeeds is invoked exactly twice, and the
// outer Run call succeeds.
func TestTransaction_S6(t *testing.T) {
	var statements []string
	tx := txn.New(ident.NewTransactionID(), recordingExecutor(&statements), 5)

	invocations := 0
	err := tx.Run(context.Background(), func(ctx context.Context, tx *txn.Transaction) error {
		invocations++
		if invocations == 1 {
			return &pgconn.PgError{Code: "40001", Message: "serialization_failure"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, invocations)
	assert.Equal(t, []string{"START TRANSACTION", "ROLLBACK", "START TRANSACTION", "COMMIT"}, statements)
}

func TestTransaction_NonClass40NotRetried(t *testing.T) {
	var statements []string
	tx := txn.New(ident.NewTransactionID(), recordingExecutor(&statements), 5)

	invocations := 0
	wantErr := &pgconn.PgError{Code: "23505", Message: "unique_violation"}
	err := tx.Run(context.Background(), func(ctx context.Context, tx *txn.Transaction) error {
		invocations++
		return wantErr
	})

	require.Error(t, err)
	assert.Equal(t, 1, invocations)
	assert.True(t, errors.Is(err, wantErr) || errors.As(err, new(*pgconn.PgError)))
}

func TestTransaction_RetryLimitExhausted(t *testing.T) {
	var statements []string
	tx := txn.New(ident.NewTransactionID(), recordingExecutor(&statements), 2)

	invocations := 0
	err := tx.Run(context.Background(), func(ctx context.Context, tx *txn.Transaction) error {
		invocations++
		return &pgconn.PgError{Code: "40001", Message: "serialization_failure"}
	})

	require.Error(t, err)
	assert.Equal(t, 3, invocations) // 1 + transactionRetryLimit
}

func TestTransaction_NestedSavepoint(t *testing.T) {
	var statements []string
	tx := txn.New(ident.NewTransactionID(), recordingExecutor(&statements), 5)

	err := tx.Run(context.Background(), func(ctx context.Context, tx *txn.Transaction) error {
		return tx.Nested(ctx, func(ctx context.Context, tx *txn.Transaction) error {
			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, []string{
		"START TRANSACTION",
		"SAVEPOINT slonik_2",
		"RELEASE SAVEPOINT slonik_2",
		"COMMIT",
	}, statements)
}

func TestTransaction_NestedSavepointRollback(t *testing.T) {
	var statements []string
	tx := txn.New(ident.NewTransactionID(), recordingExecutor(&statements), 5)

	boom := errors.New("boom")
	err := tx.Run(context.Background(), func(ctx context.Context, tx *txn.Transaction) error {
		nestedErr := tx.Nested(ctx, func(ctx context.Context, tx *txn.Transaction) error {
			return boom
		})
		return nestedErr
	})

	require.Error(t, err)
	assert.Equal(t, []string{
		"START TRANSACTION",
		"SAVEPOINT slonik_2",
		"ROLLBACK TO SAVEPOINT slonik_2",
		"ROLLBACK",
	}, statements)
}
