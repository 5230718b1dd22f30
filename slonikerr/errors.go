// Copyright (c) 2026 Slonik Authors. All rights reserved.

/*
Package slonikerr defines the centralized error taxonomy for the slonik
query engine.

It provides a single concrete error type, [Error], tagged with a
machine-readable [Kind], that bridges low-level driver/transport failures
and the high-level contract the query engine promises callers: every
[Error] that leaves the pipeline carries the originating queryId and the
rendered sql and bind values (empty when it fails before interpretation),
and an error mapped from a driver SQLSTATE keeps that driver error as its
Cause.

Architecture:

  - Error: one struct for every kind, discriminated by Kind.
  - Constructors: one constructor per row of spec §7's taxonomy table.
  - Classification: [errors.Is] / [errors.As] traverse Cause; Is(err, Kind)
    is the idiomatic check call sites use instead of type assertions.

Errors raised by the engine itself are [Error] values. An error returned
by an interceptor hook leaves the pipeline as the hook returned it.
*/
package slonikerr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable discriminator for [Error], one per row of
// spec §7's taxonomy table (plus TransactionRollbackError, added for the
// case where a SQLSTATE class-40 error survives retry exhaustion — see
// DESIGN.md).
type Kind string

const (
	KindInvalidInput            Kind = "InvalidInputError"
	KindConnection               Kind = "ConnectionError"
	KindPoolEnded                Kind = "PoolEndedError"
	KindConcurrency              Kind = "ConcurrencyError"
	KindStatementTimeout         Kind = "StatementTimeoutError"
	KindIdleTransactionTimeout   Kind = "IdleTransactionTimeoutError"
	KindNotFound                 Kind = "NotFoundError"
	KindDataIntegrity            Kind = "DataIntegrityError"
	KindSchemaValidation         Kind = "SchemaValidationError"
	KindUniqueViolation          Kind = "UniqueIntegrityConstraintViolationError"
	KindForeignKeyViolation      Kind = "ForeignKeyIntegrityConstraintViolationError"
	KindNotNullViolation         Kind = "NotNullIntegrityConstraintViolationError"
	KindCheckViolation           Kind = "CheckIntegrityConstraintViolationError"
	KindTupleMoved               Kind = "TupleMovedToAnotherPartitionError"
	KindBackendTerminated        Kind = "BackendTerminatedError"
	KindInputSyntax              Kind = "InputSyntaxError"
	KindInvalidConfiguration     Kind = "InvalidConfigurationError"
	KindUnexpectedState          Kind = "UnexpectedStateError"
	KindTransactionRollback      Kind = "TransactionRollbackError"
)

// Error is the canonical error type produced by the query engine.
//
// # Security
//
// Values is retained for diagnostics (logging, error reports) but callers
// embedding [Error] in a client-facing response are responsible for
// deciding whether bind values are safe to expose.
type Error struct {
	// Kind is the machine-readable taxonomy entry this error belongs to.
	Kind Kind
	// Message is a human-readable description of the failure.
	Message string
	// QueryID is the originating query's identifier, empty if the error
	// occurred before a query context existed (e.g. pool construction).
	QueryID string
	// SQL is the rendered statement in flight when the error occurred.
	SQL string
	// Values is the flat bind-value list in flight when the error occurred.
	Values []any
	// Constraint, when non-empty, names the violated constraint for the
	// IntegrityConstraintViolation family.
	Constraint string
	// Cause is the underlying error (typically a driver error), retained
	// for [errors.Unwrap] and server-side logging.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("slonik: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("slonik: %s: %s", e.Kind, e.Message)
}

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *Error) Unwrap() error { return e.Cause }

// WithQuery returns a copy of e with the query context fields populated.
// Lower layers (driver adapter, dberr) construct errors without knowing
// the queryId; the pipeline attaches it once the query context exists.
func (e *Error) WithQuery(queryID, sql string, values []any) *Error {
	cp := *e
	cp.QueryID = queryID
	cp.SQL = sql
	cp.Values = values
	return &cp
}

// Is reports whether err (or any error in its chain) is a [*Error] of the
// given [Kind].
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// As extracts the [*Error] from err's chain, or nil if not found.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// # Constructors — client errors

// InvalidInput wraps a builder-time validation failure (non-finite number,
// circular JSON, width mismatch, reserved placeholder collision).
func InvalidInput(message string, cause error) *Error {
	return &Error{Kind: KindInvalidInput, Message: message, Cause: cause}
}

// Connection wraps a pool-acquisition timeout or retry-limit exhaustion.
func Connection(message string, cause error) *Error {
	return &Error{Kind: KindConnection, Message: message, Cause: cause}
}

// PoolEnded reports use of a pool after [End] has been called.
func PoolEnded() *Error {
	return &Error{Kind: KindPoolEnded, Message: "cannot acquire a connection, the pool has ended"}
}

// Concurrency reports overlapping use of a pinned (non-Pool) handle.
func Concurrency() *Error {
	return &Error{Kind: KindConcurrency, Message: "this connection handle is already executing a query"}
}

// StatementTimeout wraps a client- or server-side statement timeout.
func StatementTimeout(cause error) *Error {
	return &Error{Kind: KindStatementTimeout, Message: "statement timeout exceeded", Cause: cause}
}

// IdleTransactionTimeout wraps a server-aborted idle transaction.
func IdleTransactionTimeout(cause error) *Error {
	return &Error{Kind: KindIdleTransactionTimeout, Message: "transaction was idle for too long and was aborted by the server", Cause: cause}
}

// NotFound reports a shape function (one/many) that matched zero rows.
func NotFound() *Error {
	return &Error{Kind: KindNotFound, Message: "the query returned no rows"}
}

// DataIntegrity reports a shape function row/column-count mismatch.
func DataIntegrity(message string) *Error {
	return &Error{Kind: KindDataIntegrity, Message: message}
}

// SchemaValidation wraps a failing [RowSchema.Parse] call.
func SchemaValidation(message string, cause error) *Error {
	return &Error{Kind: KindSchemaValidation, Message: message, Cause: cause}
}

// UniqueViolation wraps a SQLSTATE 23505 error.
func UniqueViolation(constraint string, cause error) *Error {
	return &Error{Kind: KindUniqueViolation, Message: "unique constraint violation", Constraint: constraint, Cause: cause}
}

// ForeignKeyViolation wraps a SQLSTATE 23503 error.
func ForeignKeyViolation(constraint string, cause error) *Error {
	return &Error{Kind: KindForeignKeyViolation, Message: "foreign key constraint violation", Constraint: constraint, Cause: cause}
}

// NotNullViolation wraps a SQLSTATE 23502 error.
func NotNullViolation(constraint string, cause error) *Error {
	return &Error{Kind: KindNotNullViolation, Message: "not-null constraint violation", Constraint: constraint, Cause: cause}
}

// CheckViolation wraps a SQLSTATE 23514 error.
func CheckViolation(constraint string, cause error) *Error {
	return &Error{Kind: KindCheckViolation, Message: "check constraint violation", Constraint: constraint, Cause: cause}
}

// TupleMoved wraps a SQLSTATE 40001-adjacent partition-move error
// (Postgres 40P04/cross-partition update, reported as its own kind
// because — unlike the rest of class 40 — it is not automatically
// retried; the moved tuple makes a blind retry unsafe).
func TupleMoved(cause error) *Error {
	return &Error{Kind: KindTupleMoved, Message: "tuple to be locked or updated was already moved to another partition", Cause: cause}
}

// BackendTerminated wraps a SQLSTATE 57P01 backend-terminated error.
func BackendTerminated(cause error) *Error {
	return &Error{Kind: KindBackendTerminated, Message: "the database backend terminated the connection", Cause: cause}
}

// InputSyntax wraps a SQLSTATE 42601 syntax error.
func InputSyntax(cause error) *Error {
	return &Error{Kind: KindInputSyntax, Message: "the server rejected the statement's syntax", Cause: cause}
}

// InvalidConfiguration wraps a SQLSTATE class 26 invalid-configuration error.
func InvalidConfiguration(cause error) *Error {
	return &Error{Kind: KindInvalidConfiguration, Message: "invalid server configuration", Cause: cause}
}

// TransactionRollback wraps a SQLSTATE class 40 error that no more
// specific kind matches. Every such driver error is mapped to it; the
// caller sees it once the retry limit is exhausted, or at once where no
// retry applies.
func TransactionRollback(cause error) *Error {
	return &Error{Kind: KindTransactionRollback, Message: "transaction was rolled back and the retry limit was exhausted", Cause: cause}
}

// UnexpectedState reports an internal invariant violation, a value the
// row parsers cannot decode, or a driver error that no more specific
// kind matches (dberr's fallback).
func UnexpectedState(message string) *Error {
	return &Error{Kind: KindUnexpectedState, Message: message}
}
