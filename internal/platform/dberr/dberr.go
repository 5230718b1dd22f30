// Copyright (c) 2026 Slonik Authors. All rights reserved.

// Package dberr bridges low-level pgx/PostgreSQL errors into the
// [slonikerr] taxonomy, and classifies which errors belong to SQLSTATE
// class 40 (transaction rollback) — the sole class the engine retries
// automatically per spec §4.F.
package dberr

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/slonik/slonikerr"
)

// classTransactionRollback is the two-digit SQLSTATE class Postgres
// reserves for transaction-rollback conditions (serialization failures,
// deadlocks, and so on).
const classTransactionRollback = "40"

// Wrap inspects a raw driver error and maps it to a [*slonikerr.Error].
// It returns nil if err is nil, and maps to UnexpectedState only when no
// more specific rule matches.
func Wrap(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return slonikerr.NotFound()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return slonikerr.StatementTimeout(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return wrapPgError(pgErr)
	}

	return slonikerr.UnexpectedState(err.Error())
}

func wrapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return slonikerr.UniqueViolation(pgErr.ConstraintName, pgErr)
	case pgerrcode.ForeignKeyViolation:
		return slonikerr.ForeignKeyViolation(pgErr.ConstraintName, pgErr)
	case pgerrcode.NotNullViolation:
		return slonikerr.NotNullViolation(pgErr.ColumnName, pgErr)
	case pgerrcode.CheckViolation:
		return slonikerr.CheckViolation(pgErr.ConstraintName, pgErr)
	case "40P04": // Postgres 15+ tuple already moved to another partition.
		return slonikerr.TupleMoved(pgErr)
	case pgerrcode.AdminShutdown, pgerrcode.CrashShutdown:
		return slonikerr.BackendTerminated(pgErr)
	case pgerrcode.SyntaxError:
		return slonikerr.InputSyntax(pgErr)
	case pgerrcode.IdleInTransactionSessionTimeout:
		return slonikerr.IdleTransactionTimeout(pgErr)
	case pgerrcode.QueryCanceled:
		return slonikerr.StatementTimeout(pgErr)
	}

	if class(pgErr.Code) == classTransactionRollback {
		return slonikerr.TransactionRollback(pgErr)
	}

	if strings.HasPrefix(pgErr.Code, "26") {
		return slonikerr.InvalidConfiguration(pgErr)
	}

	return slonikerr.UnexpectedState(pgErr.Message)
}

// IsTransactionRollbackClass reports whether err's SQLSTATE belongs to
// class 40, the only class the engine retries automatically. The
// tuple-moved code 40P04 is excluded: it is never retried.
func IsTransactionRollbackClass(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return class(pgErr.Code) == classTransactionRollback && pgErr.Code != "40P04"
	}

	var se *slonikerr.Error
	if errors.As(err, &se) {
		return se.Kind == slonikerr.KindTransactionRollback
	}

	return false
}

func class(sqlstate string) string {
	if len(sqlstate) < 2 {
		return sqlstate
	}
	return sqlstate[:2]
}
