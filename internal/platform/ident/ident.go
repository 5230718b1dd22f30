// Copyright (c) 2026 Slonik Authors. All rights reserved.

// Package ident mints the identifiers threaded through query context: one
// per pool, one per physical connection, one per query, one per
// transaction. All four share the same UUIDv7 generator so that logs and
// interceptor sandboxes can be correlated and roughly time-ordered.
package ident

import "github.com/taibuivan/slonik/pkg/uuidv7"

// PoolID identifies a single DatabasePool for the lifetime of the process.
type PoolID string

// ConnectionID identifies one physical, acquired connection.
type ConnectionID string

// QueryID identifies one user-visible query call.
type QueryID string

// TransactionID identifies one top-level transaction (shared by its nested
// savepoints, which are distinguished by depth, not by a new TransactionID).
type TransactionID string

// NewPoolID mints a new PoolID.
func NewPoolID() PoolID { return PoolID(uuidv7.New()) }

// NewConnectionID mints a new ConnectionID.
func NewConnectionID() ConnectionID { return ConnectionID(uuidv7.New()) }

// NewQueryID mints a new QueryID.
func NewQueryID() QueryID { return QueryID(uuidv7.New()) }

// NewTransactionID mints a new TransactionID.
func NewTransactionID() TransactionID { return TransactionID(uuidv7.New()) }
