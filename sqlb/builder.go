// Copyright (c) 2026 Slonik Authors. All rights reserved.

package sqlb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/taibuivan/slonik/slonikerr"
)

// placeholderPrefix is the internal, collision-free sentinel [SQL] embeds
// between fragments. It is never rendered to the driver — [Interpret]
// always replaces every occurrence before the statement leaves this
// package.
const placeholderPrefix = "$slonik_"

// SQL is the tagged-template entry point: fragments are the literal
// pieces of SQL text surrounding each value, so len(fragments) must equal
// len(values)+1 (Go has no tagged templates; this is the explicit
// fragments/values form spec §9 calls for). Each value is classified and
// appended per §4.B: a [Token] value nests for later interpretation, a
// [Primitive] value becomes a bind parameter.
//
// Example:
//
//	sqlb.SQL([]string{"SELECT ", ", ", " WHERE id = ", ""}, "a", "b", 1)
//	// sql:    "SELECT $slonik_1, $slonik_2 WHERE id = $slonik_3"
//	// values: ["a", "b", 1]
func SQL(fragments []string, values ...any) (Raw, error) {
	if len(fragments) != len(values)+1 {
		return Raw{}, slonikerr.InvalidInput(
			fmt.Sprintf("sqlb: expected %d fragments for %d values, got %d", len(values)+1, len(values), len(fragments)),
			nil,
		)
	}

	var b strings.Builder
	for i, fragment := range fragments {
		if strings.Contains(fragment, placeholderPrefix) {
			return Raw{}, slonikerr.InvalidInput(
				"sqlb: literal SQL text must not contain the reserved placeholder sentinel \"$slonik_\"",
				nil,
			)
		}
		b.WriteString(fragment)
		if i < len(values) {
			b.WriteString(placeholderPrefix)
			b.WriteString(strconv.Itoa(i + 1))
		}
	}

	return Raw{SQL: b.String(), Values: values}, nil
}

// MustSQL is [SQL] but panics on error. Useful for package-level literal
// queries a programmer controls (not one built from untrusted input).
func MustSQL(fragments []string, values ...any) Raw {
	raw, err := SQL(fragments, values...)
	if err != nil {
		panic(err)
	}
	return raw
}

// Type returns a builder that attaches rowSchema to every [Raw] token it
// produces, per spec §4.A's `type(schema)` combinator.
func Type(schema RowSchema) func(fragments []string, values ...any) (Raw, error) {
	return func(fragments []string, values ...any) (Raw, error) {
		raw, err := SQL(fragments, values...)
		if err != nil {
			return Raw{}, err
		}
		raw.RowSchema = schema
		return raw, nil
	}
}

// WrapExists wraps inner's SQL text as `SELECT EXISTS (<inner>)`, keeping
// inner's bind values unchanged — spec §4.H's `exists` shape function
// sends this wrapped form to the driver instead of the caller's literal
// query, so existence is decided by the database's own short-circuiting
// EXISTS evaluation rather than by counting rows client-side. The
// wrapped query answers a different question than inner did, so
// inner.RowSchema (scoped to inner's own row shape) is dropped.
func WrapExists(inner Raw) Raw {
	return Raw{SQL: "SELECT EXISTS (" + inner.SQL + ")", Values: inner.Values}
}

// NewIdentifier constructs an [Identifier] token from one or more parts
// (e.g. NewIdentifier("public", "users", "id") renders `"public"."users"."id"`).
func NewIdentifier(names ...string) Identifier {
	return Identifier{Names: append([]string(nil), names...)}
}

// NewArray constructs an [Array] token. memberType is a bare Postgres
// type name or a [Raw] fragment rendered as the cast target.
func NewArray(values []any, memberType any) Array {
	return Array{MemberType: memberType, Values: values}
}

// NewBinary constructs a [Binary] (bytea) token.
func NewBinary(data []byte) Binary {
	return Binary{Data: data}
}

// NewJSON constructs a `json`-typed [Json] token.
func NewJSON(value any) Json {
	return Json{Value: value, Binary: false}
}

// NewJSONB constructs a `jsonb`-typed [Json] token.
func NewJSONB(value any) Json {
	return Json{Value: value, Binary: true}
}

// Join constructs a [List] token: each member's SQL rendering is joined
// by glue's sql. glue must carry no bind values (e.g. SQL(" AND ")); this
// is validated at interpretation time.
func Join(members []any, glue Raw) List {
	return List{Members: members, Glue: glue}
}

// NewUnnest constructs an [Unnest] token. Every tuple must have the same
// width as columnTypes; width mismatches are reported by [Interpret].
func NewUnnest(tuples [][]any, columnTypes []any) Unnest {
	return Unnest{Tuples: tuples, ColumnTypes: columnTypes}
}

// Literal renders v inlined into the SQL text rather than as a bind
// parameter — spec §6's `literalValue`. Unlike every other constructor
// this bypasses parameterisation, so it accepts only strings, whole
// numbers, bools and nil, and escapes strings by doubling embedded quotes.
// Prefer a bind parameter; use Literal only where Postgres forbids one
// (e.g. inside DDL, as an enum bareword).
func Literal(v Primitive) (Raw, error) {
	switch t := v.(type) {
	case nil:
		return Raw{SQL: "NULL"}, nil
	case bool:
		if t {
			return Raw{SQL: "TRUE"}, nil
		}
		return Raw{SQL: "FALSE"}, nil
	case string:
		return Raw{SQL: "'" + strings.ReplaceAll(t, "'", "''") + "'"}, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Raw{SQL: fmt.Sprintf("%d", t)}, nil
	default:
		return Raw{}, slonikerr.InvalidInput(fmt.Sprintf("sqlb: literal value of type %T cannot be inlined safely", v), nil)
	}
}
