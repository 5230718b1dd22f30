// Copyright (c) 2026 Slonik Authors. All rights reserved.

package sqlb_test

import (
	"math"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/slonik/sqlb"
)

// TestInterpret_S1 covers spec scenario S1: a raw template mixing
// primitives and a nested identifier token.
func TestInterpret_S1(t *testing.T) {
	raw, err := sqlb.SQL(
		[]string{"SELECT ", ", ", ", ", ""},
		1, "a", sqlb.NewIdentifier("u", "id"),
	)
	require.NoError(t, err)

	sql, values, err := sqlb.Interpret(raw)
	require.NoError(t, err)

	assert.Equal(t, `SELECT $1, $2, "u"."id"`, sql)
	assert.Equal(t, []any{1, "a"}, values)
}

// TestInterpret_S2 covers spec scenario S2: sqlb.Join gluing two nested
// raw fragments with " AND ".
func TestInterpret_S2(t *testing.T) {
	a, err := sqlb.SQL([]string{"a=", ""}, 1)
	require.NoError(t, err)
	b, err := sqlb.SQL([]string{"b=", ""}, 2)
	require.NoError(t, err)
	glue, err := sqlb.SQL([]string{" AND "})
	require.NoError(t, err)

	joined := sqlb.Join([]any{a, b}, glue)
	root, err := sqlb.SQL([]string{""}, joined)
	require.NoError(t, err)

	sql, values, err := sqlb.Interpret(root)
	require.NoError(t, err)

	assert.Equal(t, "a=$1 AND b=$2", sql)
	assert.Equal(t, []any{1, 2}, values)
}

// TestInterpret_S3 covers spec scenario S3: sqlb.NewUnnest transposes
// tuples into one array-typed bind parameter per column.
func TestInterpret_S3(t *testing.T) {
	unnest := sqlb.NewUnnest(
		[][]any{{1, "x"}, {2, "y"}},
		[]any{"int4", "text"},
	)
	root, err := sqlb.SQL([]string{"SELECT * FROM ", ""}, unnest)
	require.NoError(t, err)

	sql, values, err := sqlb.Interpret(root)
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM unnest($1::int4[], $2::text[])", sql)
	require.Len(t, values, 2)
	assert.Equal(t, []any{1, 2}, values[0])
	assert.Equal(t, []any{"x", "y"}, values[1])
}

// TestInterpret_UnnestWidthMismatch covers the width-mismatch rejection
// in spec §4.B step 5.
func TestInterpret_UnnestWidthMismatch(t *testing.T) {
	unnest := sqlb.NewUnnest([][]any{{1, "x"}, {2}}, []any{"int4", "text"})
	root, err := sqlb.SQL([]string{""}, unnest)
	require.NoError(t, err)

	_, _, err = sqlb.Interpret(root)
	require.Error(t, err)
}

// TestInterpret_NonFiniteRejected covers non-finite number rejection.
func TestInterpret_NonFiniteRejected(t *testing.T) {
	root, err := sqlb.SQL([]string{"SELECT ", ""}, math.NaN())
	require.NoError(t, err)

	_, _, err = sqlb.Interpret(root)
	require.Error(t, err)
}

// TestInterpret_IdentifierQuoteDoubling covers invariant 3: idempotent,
// non-inverse identifier quoting.
func TestInterpret_IdentifierQuoteDoubling(t *testing.T) {
	root, err := sqlb.SQL([]string{""}, sqlb.NewIdentifier(`a"b`))
	require.NoError(t, err)

	sql, _, err := sqlb.Interpret(root)
	require.NoError(t, err)
	assert.Equal(t, `"a""b"`, sql)
}

// TestInterpret_PlaceholderWellFormedness covers invariant 1: every
// placeholder is $k for k in 1..N, monotonic and collision-free.
func TestInterpret_PlaceholderWellFormedness(t *testing.T) {
	raw, err := sqlb.SQL(
		[]string{"SELECT ", ", ", ", ", ""},
		1, 2, sqlb.NewArray([]any{3, 4}, "int4"),
	)
	require.NoError(t, err)

	sql, values, err := sqlb.Interpret(raw)
	require.NoError(t, err)

	re := regexp.MustCompile(`\$(\d+)`)
	matches := re.FindAllStringSubmatch(sql, -1)
	require.Len(t, matches, len(values))

	seen := map[int]bool{}
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		require.NoError(t, err)
		assert.True(t, n >= 1 && n <= len(values))
		seen[n] = true
	}
	assert.Len(t, seen, len(values))

	for _, v := range values {
		// Invariant 2: value flatness — no element is a token.
		switch v.(type) {
		case sqlb.Raw, sqlb.Identifier, sqlb.Array, sqlb.Binary, sqlb.Json, sqlb.List, sqlb.Unnest:
			t.Fatalf("value flatness violated: %#v is a token", v)
		}
	}
}

// TestInterpret_JoinGlueMustBeBare covers the requirement that join glue
// carry zero bind values.
func TestInterpret_JoinGlueMustBeBare(t *testing.T) {
	glueWithValue, err := sqlb.SQL([]string{"", ""}, 1)
	require.NoError(t, err)

	joined := sqlb.Join([]any{1, 2}, glueWithValue)
	root, err := sqlb.SQL([]string{""}, joined)
	require.NoError(t, err)

	_, _, err = sqlb.Interpret(root)
	require.Error(t, err)
}

// TestInterpret_ReservedPlaceholderRejected covers rejection of a
// literal fragment that smuggles the reserved sentinel.
func TestInterpret_ReservedPlaceholderRejected(t *testing.T) {
	_, err := sqlb.SQL([]string{"SELECT $slonik_1"})
	require.Error(t, err)
}
