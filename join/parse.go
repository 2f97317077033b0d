package join

import "fmt"

// ParseClauses decodes the wire-shaped join DSL: a single object or a list
// of objects, each with "op", "table", and "on" (a list of {left, operator,
// right} objects; omitted for CROSS JOIN).
func ParseClauses(raw any) ([]Clause, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		c, err := parseOne(v)
		if err != nil {
			return nil, err
		}
		return []Clause{c}, nil
	case []any:
		clauses := make([]Clause, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("join: list entries must be objects")
			}
			c, err := parseOne(m)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		}
		return clauses, nil
	default:
		return nil, fmt.Errorf("join: unsupported join value %T", raw)
	}
}

func parseOne(m map[string]any) (Clause, error) {
	op, _ := m["op"].(string)
	if op == "" {
		return Clause{}, fmt.Errorf("join: \"op\" is required")
	}
	table, _ := m["table"].(string)
	if table == "" {
		return Clause{}, fmt.Errorf("join: \"table\" is required")
	}

	clause := Clause{Op: Op(op), Table: table}

	onRaw, ok := m["on"]
	if !ok {
		return clause, nil
	}
	onList, ok := onRaw.([]any)
	if !ok {
		return Clause{}, fmt.Errorf("join: \"on\" must be a list")
	}
	for _, item := range onList {
		cm, ok := item.(map[string]any)
		if !ok {
			return Clause{}, fmt.Errorf("join: \"on\" entries must be objects")
		}
		left, _ := cm["left"].(string)
		operator, _ := cm["operator"].(string)
		right, _ := cm["right"].(string)
		if left == "" || operator == "" || right == "" {
			return Clause{}, fmt.Errorf("join: \"on\" entry requires left, operator, and right")
		}
		clause.On = append(clause.On, Condition{Left: left, Operator: operator, Right: right})
	}
	return clause, nil
}
