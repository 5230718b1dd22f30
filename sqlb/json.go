// Copyright (c) 2026 Slonik Authors. All rights reserved.

package sqlb

import (
	"encoding/json"
	"sort"

	"github.com/taibuivan/slonik/slonikerr"
)

// stableJSON serializes v with deterministic key ordering (Go's
// encoding/json already sorts map keys; the normalization pass walks
// map[string]any and []any values, other types go to encoding/json as
// they are) and fails on values [encoding/json] cannot represent (channels, funcs,
// cyclic structures caught via a depth guard).
func stableJSON(v any) (string, error) {
	normalized, err := normalizeJSON(v, 0)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(normalized)
	if err != nil {
		return "", slonikerr.InvalidInput("sqlb: value is not JSON-serializable", err)
	}

	return string(out), nil
}

// maxJSONDepth guards against runaway recursion from an accidentally
// self-referential structure (encoding/json has no native cycle
// detection for map[string]any/[]any trees).
const maxJSONDepth = 64

func normalizeJSON(v any, depth int) (any, error) {
	if depth > maxJSONDepth {
		return nil, slonikerr.InvalidInput("sqlb: JSON value nesting exceeds the maximum depth (possible cycle)", nil)
	}

	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(t))
		for _, k := range keys {
			normalizedValue, err := normalizeJSON(t[k], depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = normalizedValue
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, member := range t {
			normalizedValue, err := normalizeJSON(member, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = normalizedValue
		}
		return out, nil
	default:
		return v, nil
	}
}
