package command

import (
	"fmt"
	"math"
)

// Parameter values arrive as decoded JSON, so numbers are float64 and sets
// are []any. Validation is strict: a string where an integer is expected is
// rejected, never coerced.

func intParam(params map[string]any, key string) (int, bool, Result) {
	v, present := params[key]
	if !present || v == nil {
		return 0, false, Result{}
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, true, invalid(fmt.Sprintf("Parameter %q must be an integer, got %v", key, n))
		}
		return int(n), true, Result{}
	case int:
		return n, true, Result{}
	case int64:
		return int(n), true, Result{}
	default:
		return 0, true, invalid(fmt.Sprintf("Parameter %q must be an integer, got %T", key, v))
	}
}

func stringParam(params map[string]any, key string) (string, bool, Result) {
	v, present := params[key]
	if !present || v == nil {
		return "", false, Result{}
	}
	s, isStr := v.(string)
	if !isStr {
		return "", true, invalid(fmt.Sprintf("Parameter %q must be a string, got %T", key, v))
	}
	return s, true, Result{}
}

func stringSetParam(params map[string]any, key string) ([]string, bool, Result) {
	v, present := params[key]
	if !present || v == nil {
		return nil, false, Result{}
	}
	switch list := v.(type) {
	case []string:
		return list, true, Result{}
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			s, isStr := e.(string)
			if !isStr {
				return nil, true, invalid(fmt.Sprintf("Parameter %q must be a list of strings", key))
			}
			out = append(out, s)
		}
		return out, true, Result{}
	case string:
		// A single exclusion name is accepted as a one-element set.
		return []string{list}, true, Result{}
	default:
		return nil, true, invalid(fmt.Sprintf("Parameter %q must be a list of strings, got %T", key, v))
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
