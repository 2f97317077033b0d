package filter

import (
	"math"
	"reflect"
	"strconv"
)

// isInt reports whether v is a numeric value with no fractional part, or a
// string that parses to such a number and round-trips back to the same
// string. It decides both the JSON accessor (->) and the ::int cast for
// metadata-mode comparisons.
func isInt(v any) bool {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		f := float64(t)
		return f == math.Trunc(f)
	case float64:
		return t == math.Trunc(t)
	case string:
		if t == "" {
			return false
		}
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return false
		}
		return strconv.FormatInt(n, 10) == t
	default:
		return false
	}
}

// isFloat reports whether v is a numeric value with a fractional part, or a
// string that parses to a float and round-trips back to the same string.
func isFloat(v any) bool {
	switch t := v.(type) {
	case float32:
		f := float64(t)
		return f != math.Trunc(f)
	case float64:
		return t != math.Trunc(t)
	case string:
		if t == "" || isInt(t) {
			return false
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return false
		}
		return strconv.FormatFloat(f, 'g', -1, 64) == t
	default:
		return false
	}
}

// isString reports whether v is a string that is not itself a numeric
// round-trip (i.e. not also classified by isInt or isFloat).
func isString(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return !isInt(s) && !isFloat(s)
}

// isFalsy reports whether v is one of the pre-existing "drop this clause"
// values: null, the empty string, or numeric zero. Preserved from the
// original filter compiler's behaviour; see DESIGN.md Open Question log.
func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float32:
		return t == 0
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case int8, int16, int32, uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(t).IsZero()
	default:
		return false
	}
}
