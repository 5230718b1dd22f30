// Copyright (c) 2026 Slonik Authors. All rights reserved.

package sqlb

import (
	"fmt"
	"math"

	"github.com/taibuivan/slonik/slonikerr"
)

// Primitive is any value the interpreter may bind as a parameter: a bool,
// a finite number, a string, a byte slice, nil, or a nested slice of
// Primitive. It is a plain `any` rather than a wrapper struct so callers
// can write query values as Go literals. Values are not checked when a
// fragment is built; the interpreter calls [ValidatePrimitive] on each
// value when it interprets the fragment.
type Primitive = any

// ValidatePrimitive reports whether v is a well-formed [Primitive]:
// no objects (other than []any holding further primitives), no
// functions, no NaN/±Infinity, no functions or channels.
func ValidatePrimitive(v any) error {
	switch t := v.(type) {
	case nil, bool, string, []byte:
		return nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return slonikerr.InvalidInput(fmt.Sprintf("non-finite float32 value: %v", t), nil)
		}
		return nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return slonikerr.InvalidInput(fmt.Sprintf("non-finite float64 value: %v", t), nil)
		}
		return nil
	case []any:
		for _, member := range t {
			if err := ValidatePrimitive(member); err != nil {
				return err
			}
		}
		return nil
	default:
		return slonikerr.InvalidInput(fmt.Sprintf("value of type %T is not a valid primitive bind value", v), nil)
	}
}
