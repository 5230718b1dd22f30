// Copyright (c) 2026 Slonik Authors. All rights reserved.

/*
Package rowparse implements the row parser and type registry: component C
of the query engine. A [Registry] maps PostgreSQL OIDs and type names to a
parser function that converts the driver's decoded column value into the
canonical representation this client returns to callers.

The registry is immutable after a [DatabasePool] is constructed — see
spec §5 — so every [Registry] method that mutates state is only safe to
call during setup, before the registry is installed on a pool.
*/
package rowparse

import (
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/taibuivan/slonik/sqlb"
)

// Parse converts a single column's driver-decoded value into this
// client's canonical representation (e.g. a timestamptz becomes an
// ISO-8601 UTC string, not a [time.Time]).
type Parse func(v any) (any, error)

// TypeParser is one registry entry. Name is the Postgres type name
// ("int8", "bytea", "timestamptz", …); OID is the well-known OID when
// known (0 means "match by name only").
type TypeParser struct {
	Name string
	OID  uint32
	Parse Parse
}

// Registry maps OIDs and type names to a [TypeParser]. The zero value is
// not usable; construct one with [NewRegistry].
type Registry struct {
	byOID  map[uint32]TypeParser
	byName map[string]TypeParser
}

// NewRegistry builds a [Registry] seeded with the built-in parsers
// (numeric, text, boolean, bytea, timestamptz, interval, plus arrays of
// int2, int4, int8, text, varchar, bool and timestamptz; other array types
// have no built-in parser), then applies extra on top — a later entry for the same OID
// or name overrides an earlier one, so callers can override a built-in.
func NewRegistry(extra ...TypeParser) *Registry {
	r := &Registry{
		byOID:  make(map[uint32]TypeParser),
		byName: make(map[string]TypeParser),
	}

	for _, p := range builtinTypeParsers() {
		r.register(p)
	}
	for _, p := range extra {
		r.register(p)
	}

	return r
}

func (r *Registry) register(p TypeParser) {
	if p.OID != 0 {
		r.byOID[p.OID] = p
	}
	if p.Name != "" {
		r.byName[p.Name] = p
	}
}

// Lookup finds the parser for oid, falling back to typeName if oid is
// unknown or zero. It returns (nil, false) if neither matches — callers
// should pass the driver-decoded value through unchanged in that case.
func (r *Registry) Lookup(oid uint32, typeName string) (Parse, bool) {
	if p, ok := r.byOID[oid]; ok {
		return p.Parse, true
	}
	if p, ok := r.byName[typeName]; ok {
		return p.Parse, true
	}
	return nil, false
}

// ParseColumn applies the registered parser for (oid, typeName) to v, or
// returns v unchanged if no parser is registered.
func (r *Registry) ParseColumn(oid uint32, typeName string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	parse, ok := r.Lookup(oid, typeName)
	if !ok {
		return v, nil
	}
	return parse(v)
}

// builtinOID is a small convenience constructor for a [TypeParser] keyed
// by a well-known pgtype OID constant.
func builtinOID(oid uint32, name string, parse Parse) TypeParser {
	return TypeParser{Name: name, OID: oid, Parse: parse}
}

func builtinTypeParsers() []TypeParser {
	return []TypeParser{
		builtinOID(pgtype.Int2OID, "int2", passthrough),
		builtinOID(pgtype.Int4OID, "int4", passthrough),
		builtinOID(pgtype.Int8OID, "int8", passthrough),
		builtinOID(pgtype.Float4OID, "float4", passthrough),
		builtinOID(pgtype.Float8OID, "float8", passthrough),
		builtinOID(pgtype.NumericOID, "numeric", parseNumeric),
		builtinOID(pgtype.TextOID, "text", passthrough),
		builtinOID(pgtype.VarcharOID, "varchar", passthrough),
		builtinOID(pgtype.BoolOID, "bool", passthrough),
		builtinOID(pgtype.ByteaOID, "bytea", passthrough),
		builtinOID(pgtype.TimestamptzOID, "timestamptz", parseTimestamptz),
		builtinOID(pgtype.TimestampOID, "timestamp", parseTimestamptz),
		builtinOID(pgtype.IntervalOID, "interval", parseInterval),
		builtinOID(pgtype.JSONOID, "json", passthrough),
		builtinOID(pgtype.JSONBOID, "jsonb", passthrough),

		builtinOID(pgtype.Int2ArrayOID, "_int2", parseArray(passthrough)),
		builtinOID(pgtype.Int4ArrayOID, "_int4", parseArray(passthrough)),
		builtinOID(pgtype.Int8ArrayOID, "_int8", parseArray(passthrough)),
		builtinOID(pgtype.TextArrayOID, "_text", parseArray(passthrough)),
		builtinOID(pgtype.VarcharArrayOID, "_varchar", parseArray(passthrough)),
		builtinOID(pgtype.BoolArrayOID, "_bool", parseArray(passthrough)),
		builtinOID(pgtype.TimestamptzArrayOID, "_timestamptz", parseArray(parseTimestamptz)),
	}
}

// row is a local alias kept for readability in sibling files.
type row = sqlb.Row
