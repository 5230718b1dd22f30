// Copyright (c) 2026 Slonik Authors. All rights reserved.

package rowparse

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// passthrough returns v unchanged — used for types whose pgx-decoded
// native representation already matches this client's canonical form.
func passthrough(v any) (any, error) {
	return v, nil
}

// parseNumeric converts a [pgtype.Numeric] into a float64 (nil for SQL
// NULL). Values pgx already handed over as float64, float32, int64, int32
// or string, and any other type, are returned unchanged.
func parseNumeric(v any) (any, error) {
	switch t := v.(type) {
	case float64, float32, int64, int32, string:
		return t, nil
	case pgtype.Numeric:
		f, err := t.Float64Value()
		if err != nil {
			return nil, fmt.Errorf("rowparse: numeric conversion: %w", err)
		}
		if !f.Valid {
			return nil, nil
		}
		return f.Float64, nil
	default:
		return v, nil
	}
}

// parseTimestamptz canonicalizes a timestamp(tz) column into an
// ISO-8601 UTC string, per spec §4.C.
func parseTimestamptz(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	case pgtype.Timestamptz:
		if !t.Valid {
			return nil, nil
		}
		return t.Time.UTC().Format(time.RFC3339Nano), nil
	case pgtype.Timestamp:
		if !t.Valid {
			return nil, nil
		}
		return t.Time.UTC().Format(time.RFC3339Nano), nil
	case string:
		return t, nil
	default:
		return v, nil
	}
}

// parseInterval canonicalizes an INTERVAL column into an ISO-8601
// duration string ("P1Y2M3DT4H5M6S"), per spec §4.C.
func parseInterval(v any) (any, error) {
	iv, ok := v.(pgtype.Interval)
	if !ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
		return v, nil
	}
	if !iv.Valid {
		return nil, nil
	}

	years := iv.Months / 12
	months := iv.Months % 12
	days := iv.Days

	totalSeconds := iv.Microseconds / 1_000_000
	micros := iv.Microseconds % 1_000_000
	hours := totalSeconds / 3600
	totalSeconds %= 3600
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60

	var b strings.Builder
	b.WriteString("P")
	if years != 0 {
		fmt.Fprintf(&b, "%dY", years)
	}
	if months != 0 {
		fmt.Fprintf(&b, "%dM", months)
	}
	if days != 0 {
		fmt.Fprintf(&b, "%dD", days)
	}

	hasTimePart := hours != 0 || minutes != 0 || seconds != 0 || micros != 0
	if hasTimePart {
		b.WriteString("T")
		if hours != 0 {
			fmt.Fprintf(&b, "%dH", hours)
		}
		if minutes != 0 {
			fmt.Fprintf(&b, "%dM", minutes)
		}
		if micros != 0 {
			fmt.Fprintf(&b, "%d.%06dS", seconds, micros)
		} else if seconds != 0 {
			fmt.Fprintf(&b, "%dS", seconds)
		}
	}

	if b.Len() == len("P") {
		b.WriteString("T0S")
	}

	return b.String(), nil
}

// parseArray wraps an element [Parse] so it applies to every member of a
// driver-decoded slice, canonicalizing e.g. []time.Time into
// []string of ISO-8601 timestamps.
func parseArray(elem Parse) Parse {
	return func(v any) (any, error) {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return v, nil
		}

		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			parsed, err := elem(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = parsed
		}
		return out, nil
	}
}
