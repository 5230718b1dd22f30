// Copyright (c) 2026 Slonik Authors. All rights reserved.

package engine

import (
	"github.com/taibuivan/slonik/pkg/slice"
	"github.com/taibuivan/slonik/slonikerr"
	"github.com/taibuivan/slonik/sqlb"
)

// One returns the query's single row, erroring if it returned zero or
// more than one row — spec §4.G's `one` shape function (scenario S4).
func One(result *QueryResult) (sqlb.Row, error) {
	switch len(result.Rows) {
	case 0:
		return nil, slonikerr.NotFound()
	case 1:
		return result.Rows[0], nil
	default:
		return nil, slonikerr.DataIntegrity("expected exactly one row, got more than one")
	}
}

// OneFirst returns the single column of the query's single row, erroring
// if the row count is not exactly one or the column count is not exactly
// one — spec §4.G's `oneFirst` (scenario S5).
func OneFirst(result *QueryResult) (any, error) {
	row, err := One(result)
	if err != nil {
		return nil, err
	}
	return firstColumn(result, row)
}

// MaybeOne returns the query's single row, or nil if it returned no
// rows. More than one row is still an error.
func MaybeOne(result *QueryResult) (sqlb.Row, error) {
	switch len(result.Rows) {
	case 0:
		return nil, nil
	case 1:
		return result.Rows[0], nil
	default:
		return nil, slonikerr.DataIntegrity("expected at most one row, got more than one")
	}
}

// MaybeOneFirst is [MaybeOne] narrowed to the row's single column.
func MaybeOneFirst(result *QueryResult) (any, error) {
	row, err := MaybeOne(result)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return firstColumn(result, row)
}

// Many returns every row, erroring if the query returned none.
func Many(result *QueryResult) ([]sqlb.Row, error) {
	if len(result.Rows) == 0 {
		return nil, slonikerr.NotFound()
	}
	return result.Rows, nil
}

// ManyFirst returns every row's single column, erroring if the query
// returned no rows or any row has more than one column.
func ManyFirst(result *QueryResult) ([]any, error) {
	rows, err := Many(result)
	if err != nil {
		return nil, err
	}
	return firstColumns(result, rows)
}

// Any returns every row, an empty slice if the query returned none.
func Any(result *QueryResult) []sqlb.Row {
	return result.Rows
}

// AnyFirst returns every row's single column, erroring only on a
// column-count mismatch — never on zero rows.
func AnyFirst(result *QueryResult) ([]any, error) {
	return firstColumns(result, result.Rows)
}

// Exists reads the single boolean column of a `SELECT EXISTS (...)`
// result — spec §4.H's `exists` shape function. The caller is
// responsible for having wrapped the query with [sqlb.WrapExists]
// before execution; this only unpacks the answer.
func Exists(result *QueryResult) (bool, error) {
	row, err := One(result)
	if err != nil {
		return false, err
	}

	col, err := firstColumn(result, row)
	if err != nil {
		return false, err
	}

	exists, ok := col.(bool)
	if !ok {
		return false, slonikerr.DataIntegrity("exists: expected a boolean column")
	}

	return exists, nil
}

func firstColumn(result *QueryResult, row sqlb.Row) (any, error) {
	if len(result.Fields) != 1 {
		return nil, slonikerr.DataIntegrity("expected exactly one column, got more than one")
	}
	return row[result.Fields[0]], nil
}

func firstColumns(result *QueryResult, rows []sqlb.Row) ([]any, error) {
	if len(result.Fields) != 1 {
		return nil, slonikerr.DataIntegrity("expected exactly one column, got more than one")
	}
	field := result.Fields[0]
	return slice.Map(rows, func(row sqlb.Row) any { return row[field] }), nil
}
