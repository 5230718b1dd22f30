// Copyright (c) 2026 Slonik Authors. All rights reserved.

/*
Package sqlb implements the SQL fragment algebra: a typed tree of SQL
tokens and the interpreter that flattens it into a single parameterised
statement with correctly renumbered placeholders.

Architecture:

  - Token: a tagged variant (Raw, Identifier, Array, Binary, Json, List,
    Unnest) — every kind a caller cannot smuggle unescaped SQL through.
  - Builder: [SQL] composes fragments and values into a [Raw] token,
    threading a caller-private placeholder convention ($slonik_N) through
    nested tokens so the interpreter can re-flatten them in one pass.
  - Interpreter: [Interpret] walks a [Raw] token tree and produces a flat
    `(sql, values)` pair — see interpret.go.

Tokens are immutable after construction; every exported constructor
returns a value, never a pointer, so a [Token] cannot be mutated out from
under the tree that holds it.
*/
package sqlb

// Row is a single parsed database row, keyed by column name. It is the
// unit [RowSchema] validates and the unit JSON values serialize from/to.
type Row = map[string]any

// RowSchema validates and/or reshapes a parsed row. A failing Parse call
// surfaces as a SchemaValidationError (see package slonikerr).
type RowSchema interface {
	Parse(row Row) (Row, error)
}

// Token is the tagged-variant interface every SQL fragment kind
// implements. It exists only to give the interpreter a closed type
// switch to pattern-match on; it carries no behaviour of its own.
type Token interface {
	sqlToken()
}

// Raw is produced by [SQL]; sql contains positional placeholders of the
// form $slonik_N, where N is a local 1-based index into Values. Values
// elements are either a [Primitive] or a nested [Token] — see spec §3.
type Raw struct {
	SQL       string
	Values    []any
	RowSchema RowSchema
}

func (Raw) sqlToken() {}

// Identifier renders to `"a"."b"…`, doubling any embedded double quote.
type Identifier struct {
	Names []string
}

func (Identifier) sqlToken() {}

// Array renders as a single bind parameter typed memberType[]. memberType
// is either a bare Postgres type name (string) or a [Raw] fragment
// (e.g. produced by [SQL]) rendered verbatim as the cast target.
type Array struct {
	MemberType any
	Values     []any
}

func (Array) sqlToken() {}

// Binary renders as a single bytea-typed bind parameter.
type Binary struct {
	Data []byte
}

func (Binary) sqlToken() {}

// Json renders as a single bind parameter, serialized with deterministic
// key ordering. Binary selects the `jsonb` cast over `json`.
type Json struct {
	Value  any
	Binary bool
}

func (Json) sqlToken() {}

// List renders each member's SQL joined by Glue's sql. Glue must carry
// no bind values.
type List struct {
	Members []any
	Glue    Raw
}

func (List) sqlToken() {}

// Unnest renders `unnest($k::T1[], …, $k::Tn[])`: each tuple must have
// width len(ColumnTypes); tuples are transposed so each column becomes
// one bind parameter holding that column's values across all tuples.
// ColumnTypes elements are a bare type name (string) or a [Raw] fragment.
type Unnest struct {
	Tuples      [][]any
	ColumnTypes []any
}

func (Unnest) sqlToken() {}
