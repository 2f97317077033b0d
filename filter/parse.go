package filter

import (
	"fmt"
	"sort"
)

// operatorOrder fixes a deterministic evaluation order for the operators of
// a single field's operator map, since Go map iteration order is undefined
// and the compiled SQL must be stable.
var operatorOrder = []string{"$eq", "$neq", "$lt", "$lte", "$gt", "$gte", "$textSearch"}

func operatorRank(op string) int {
	for i, o := range operatorOrder {
		if o == op {
			return i
		}
	}
	return len(operatorOrder)
}

// Parse converts the wire-shaped filter object (as decoded from JSON into
// map[string]any) into a Node tree. A nil Node with a nil error means the
// filter compiled away to nothing (every entry was dropped, or the object
// was empty).
func Parse(raw map[string]any) (Node, error) {
	return parseObject(raw)
}

func parseObject(obj map[string]any) (Node, error) {
	if len(obj) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []Node
	for _, k := range keys {
		v := obj[k]
		switch k {
		case "$and", "$or":
			children, err := parseJunctionList(k, v)
			if err != nil {
				return nil, err
			}
			if len(children) == 0 {
				continue
			}
			if k == "$and" {
				clauses = append(clauses, And(children))
			} else {
				clauses = append(clauses, Or(children))
			}
		default:
			clause, err := parseField(k, v)
			if err != nil {
				return nil, err
			}
			if clause != nil {
				clauses = append(clauses, clause)
			}
		}
	}

	switch len(clauses) {
	case 0:
		return nil, nil
	case 1:
		return clauses[0], nil
	default:
		return And(clauses), nil
	}
}

func parseJunctionList(key string, v any) ([]Node, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("filter: %s requires a list of filter objects", key)
	}
	var children []Node
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("filter: %s entries must be objects", key)
		}
		child, err := parseObject(m)
		if err != nil {
			return nil, err
		}
		if child != nil {
			children = append(children, child)
		}
	}
	return children, nil
}

func parseField(field string, v any) (Node, error) {
	ops, ok := v.(map[string]any)
	if !ok {
		// implicit $eq
		if isFalsy(v) {
			return nil, nil
		}
		return Cmp{Field: field, Op: OpEq, Value: v}, nil
	}

	keys := make([]string, 0, len(ops))
	for k := range ops {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return operatorRank(keys[i]) < operatorRank(keys[j]) })

	var clauses []Node
	for _, op := range keys {
		val := ops[op]
		switch op {
		case string(OpEq), string(OpNeq), string(OpLt), string(OpLte), string(OpGt), string(OpGte):
			if isFalsy(val) {
				continue
			}
			clauses = append(clauses, Cmp{Field: field, Op: Op(op), Value: val})
		case "$textSearch":
			ts, err := parseTextSearch(field, val)
			if err != nil {
				return nil, err
			}
			if ts != nil {
				clauses = append(clauses, ts)
			}
		default:
			return nil, fmt.Errorf("filter: unknown operator %q", op)
		}
	}

	switch len(clauses) {
	case 0:
		return nil, nil
	case 1:
		return clauses[0], nil
	default:
		return And(clauses), nil
	}
}

func parseTextSearch(field string, v any) (Node, error) {
	spec, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("filter: $textSearch value must be an object")
	}
	query, _ := spec["query"].(string)
	if isFalsy(query) {
		return nil, nil
	}

	tsType := TextSearchPlain
	if t, ok := spec["type"].(string); ok && t != "" {
		switch TextSearchType(t) {
		case TextSearchPlain, TextSearchPhrase, TextSearchWebsearch:
			tsType = TextSearchType(t)
		default:
			return nil, fmt.Errorf("filter: invalid $textSearch.type %q", t)
		}
	}

	config := "english"
	if c, ok := spec["config"].(string); ok && c != "" {
		config = c
	}

	return TextSearch{Field: field, Query: query, Type: tsType, Config: config}, nil
}
