// Copyright (c) 2026 Slonik Authors. All rights reserved.

/*
Package engine implements the Execution Pipeline (component G): the
9-step sequence spec §4.G describes, the interceptor protocol that hooks
into it, the shape functions that enforce row/column cardinality on its
result, and the QueryContext threaded through every hook.

It sits above [pool] and [txn] (connection acquisition, transaction
lifecycle), [sqlb] (token interpretation) and [rowparse] (row
canonicalization and schema validation), and is the layer the root
package's DatabasePool/Transaction handles ultimately call into.
*/
package engine

import (
	"runtime"
	"time"

	"github.com/taibuivan/slonik/internal/platform/ident"
	"github.com/taibuivan/slonik/sqlb"
)

// Query is the SQL text and flat bind-value list produced by interpreting
// a [sqlb.Raw] token — spec's `Query{sql, values}`.
type Query struct {
	SQL    string
	Values []any
}

// HandleKind distinguishes the three connection-handle kinds spec §3
// names, driving the interceptor context a hook observes.
type HandleKind int

const (
	HandlePool HandleKind = iota
	HandleExplicitConnection
	HandleTransaction
)

// String renders the spec's own interceptor-context vocabulary.
func (k HandleKind) String() string {
	switch k {
	case HandlePool:
		return "IMPLICIT_QUERY"
	case HandleExplicitConnection:
		return "EXPLICIT"
	case HandleTransaction:
		return "IMPLICIT_TRANSACTION"
	default:
		return "UNKNOWN"
	}
}

// QueryContext is created once per user-visible query call and passed by
// pointer into every interceptor hook: all hooks see, and may modify, the
// same instance rather than a copy.
type QueryContext struct {
	QueryID        ident.QueryID
	PoolID         ident.PoolID
	ConnectionID   ident.ConnectionID
	TransactionID  ident.TransactionID
	HandleKind     HandleKind
	SubmissionTime time.Time
	StackTrace     []string

	OriginalQuery Query
	Query         Query

	// Sandbox is a per-query mutable map interceptors may use to pass
	// state between their own hooks (e.g. a cache key computed in
	// beforeQueryExecution, read again in afterQueryExecution).
	Sandbox map[string]any
}

// NewQueryContext assigns a fresh queryId and submission timestamp, and
// optionally captures a trimmed call site list (captureStackTrace option).
func NewQueryContext(poolID ident.PoolID, connectionID ident.ConnectionID, transactionID ident.TransactionID, kind HandleKind, captureStackTrace bool) *QueryContext {
	qc := &QueryContext{
		QueryID:        ident.NewQueryID(),
		PoolID:         poolID,
		ConnectionID:   connectionID,
		TransactionID:  transactionID,
		HandleKind:     kind,
		SubmissionTime: time.Now(),
		Sandbox:        make(map[string]any),
	}

	if captureStackTrace {
		qc.StackTrace = captureCallers()
	}

	return qc
}

const maxStackFrames = 16

func captureCallers() []string {
	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var trace []string
	for {
		frame, more := frames.Next()
		trace = append(trace, frame.Function)
		if !more {
			break
		}
	}
	return trace
}

// Interpret resolves a root [sqlb.Raw] token into a [Query], assigning
// the result to both qc.OriginalQuery and qc.Query — step 3 of spec
// §4.G's pipeline.
func Interpret(qc *QueryContext, root sqlb.Raw) error {
	sql, values, err := sqlb.Interpret(root)
	if err != nil {
		return err
	}
	q := Query{SQL: sql, Values: values}
	qc.OriginalQuery = q
	qc.Query = q
	return nil
}
