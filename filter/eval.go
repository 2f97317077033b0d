package filter

import (
	"strconv"
	"strings"
)

// Eval evaluates node against an in-memory metadata map, giving the same
// semantics as Compile's metadata mode without a database round trip. It
// backs the in-memory test double in package memory so store-level tests
// can assert filter behavior without a live Postgres connection.
func Eval(node Node, metadata map[string]any) bool {
	if node == nil {
		return true
	}
	switch t := node.(type) {
	case And:
		for _, child := range t {
			if !Eval(child, metadata) {
				return false
			}
		}
		return true
	case Or:
		if len(t) == 0 {
			return true
		}
		for _, child := range t {
			if Eval(child, metadata) {
				return true
			}
		}
		return false
	case Cmp:
		return evalCmp(t, metadata)
	case TextSearch:
		return evalTextSearch(t, metadata)
	default:
		return false
	}
}

func evalCmp(cmp Cmp, metadata map[string]any) bool {
	actual, ok := metadata[cmp.Field]
	if !ok {
		return false
	}
	switch cmp.Op {
	case OpEq:
		return compareEqual(actual, cmp.Value)
	case OpNeq:
		return !compareEqual(actual, cmp.Value)
	case OpLt, OpLte, OpGt, OpGte:
		a, aok := toFloat(actual)
		b, bok := toFloat(cmp.Value)
		if !aok || !bok {
			return false
		}
		switch cmp.Op {
		case OpLt:
			return a < b
		case OpLte:
			return a <= b
		case OpGt:
			return a > b
		default:
			return a >= b
		}
	default:
		return false
	}
}

func evalTextSearch(ts TextSearch, metadata map[string]any) bool {
	actual, ok := metadata[ts.Field]
	if !ok {
		return false
	}
	s, ok := actual.(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(ts.Query))
}

func compareEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
