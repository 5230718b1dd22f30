// Copyright (c) 2026 Slonik Authors. All rights reserved.

package sqlb

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/taibuivan/slonik/slonikerr"
)

// placeholderRe matches the internal sentinel [SQL] embeds between
// fragments. The capture group is the local 1-based index into the
// enclosing [Raw]'s Values.
var placeholderRe = regexp.MustCompile(`\$slonik_(\d+)`)

// Interpret flattens a root [Raw] token into a single parameterised
// statement: every nested token is recursively rendered and spliced in,
// and every primitive leaf becomes one entry in the returned, flat values
// slice — see spec §4.B. The root is always a [Raw] token for
// user-level queries.
func Interpret(root Raw) (string, []any, error) {
	ip := &interpreter{}
	sql, err := ip.renderRaw(root)
	if err != nil {
		return "", nil, err
	}
	return sql, ip.values, nil
}

// interpreter carries the single global, monotonically growing value
// list shared by every nested token in one call to [Interpret] — this is
// what gives the output its flat, re-indexed placeholders ($1..$N).
type interpreter struct {
	values []any
}

// bind appends v to the global value list and returns its rendered
// placeholder — the "single linear pass with a global counter" spec §4.B
// calls for.
func (ip *interpreter) bind(v any) string {
	ip.values = append(ip.values, v)
	return "$" + strconv.Itoa(len(ip.values))
}

func (ip *interpreter) renderRaw(r Raw) (string, error) {
	matches := placeholderRe.FindAllStringSubmatchIndex(r.SQL, -1)

	var b strings.Builder
	last := 0
	for _, m := range matches {
		matchStart, matchEnd := m[0], m[1]
		groupStart, groupEnd := m[2], m[3]

		b.WriteString(r.SQL[last:matchStart])

		n, err := strconv.Atoi(r.SQL[groupStart:groupEnd])
		if err != nil || n < 1 || n > len(r.Values) {
			return "", slonikerr.InvalidInput(
				fmt.Sprintf("sqlb: placeholder $slonik_%s has no matching local value", r.SQL[groupStart:groupEnd]),
				nil,
			)
		}

		rendered, err := ip.renderValue(r.Values[n-1])
		if err != nil {
			return "", err
		}
		b.WriteString(rendered)

		last = matchEnd
	}
	b.WriteString(r.SQL[last:])

	return b.String(), nil
}

func (ip *interpreter) renderValue(v any) (string, error) {
	switch t := v.(type) {
	case Raw:
		return ip.renderRaw(t)
	case Identifier:
		return renderIdentifier(t), nil
	case Array:
		return ip.renderArray(t)
	case Binary:
		return ip.renderBinary(t)
	case Json:
		return ip.renderJSON(t)
	case List:
		return ip.renderList(t)
	case Unnest:
		return ip.renderUnnest(t)
	case Token:
		return "", slonikerr.UnexpectedState(fmt.Sprintf("sqlb: unhandled token kind %T", t))
	default:
		if err := ValidatePrimitive(v); err != nil {
			return "", err
		}
		return ip.bind(v), nil
	}
}

func renderIdentifier(id Identifier) string {
	parts := make([]string, len(id.Names))
	for i, name := range id.Names {
		parts[i] = `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

func (ip *interpreter) renderArray(a Array) (string, error) {
	values := make([]any, len(a.Values))
	for i, v := range a.Values {
		if err := ValidatePrimitive(v); err != nil {
			return "", err
		}
		values[i] = v
	}

	typeName, err := ip.renderTypeName(a.MemberType)
	if err != nil {
		return "", err
	}

	return ip.bind(values) + "::" + typeName + "[]", nil
}

func (ip *interpreter) renderBinary(bin Binary) (string, error) {
	return ip.bind(bin.Data) + "::bytea", nil
}

func (ip *interpreter) renderJSON(j Json) (string, error) {
	serialized, err := stableJSON(j.Value)
	if err != nil {
		return "", err
	}

	suffix := "json"
	if j.Binary {
		suffix = "jsonb"
	}

	return ip.bind(serialized) + "::" + suffix, nil
}

func (ip *interpreter) renderList(l List) (string, error) {
	if len(l.Glue.Values) != 0 {
		return "", slonikerr.InvalidInput("sqlb: join glue must be a raw fragment with no bind values", nil)
	}
	glueSQL, err := ip.renderRaw(l.Glue)
	if err != nil {
		return "", err
	}

	parts := make([]string, len(l.Members))
	for i, member := range l.Members {
		rendered, err := ip.renderValue(member)
		if err != nil {
			return "", err
		}
		parts[i] = rendered
	}

	return strings.Join(parts, glueSQL), nil
}

func (ip *interpreter) renderUnnest(u Unnest) (string, error) {
	nCols := len(u.ColumnTypes)
	columns := make([][]any, nCols)

	for _, tuple := range u.Tuples {
		if len(tuple) != nCols {
			return "", slonikerr.InvalidInput(
				fmt.Sprintf("sqlb: unnest tuple width %d does not match %d column types", len(tuple), nCols),
				nil,
			)
		}
		for i, v := range tuple {
			if err := ValidatePrimitive(v); err != nil {
				return "", err
			}
			columns[i] = append(columns[i], v)
		}
	}

	placeholders := make([]string, nCols)
	for i, columnType := range u.ColumnTypes {
		typeName, err := ip.renderTypeName(columnType)
		if err != nil {
			return "", err
		}
		placeholders[i] = ip.bind(columns[i]) + "::" + typeName + "[]"
	}

	return "unnest(" + strings.Join(placeholders, ", ") + ")", nil
}

func (ip *interpreter) renderTypeName(t any) (string, error) {
	switch v := t.(type) {
	case string:
		return v, nil
	case Raw:
		return ip.renderRaw(v)
	default:
		return "", slonikerr.InvalidInput(fmt.Sprintf("sqlb: type name must be a string or raw fragment, got %T", t), nil)
	}
}
