// Package join compiles a small, closed-vocabulary join DSL into SQL JOIN
// clauses. Table and column names are escaped through the driver's
// identifier-quoting helper; only comparison operators from a fixed
// allow-list ever reach the rendered SQL.
package join

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Op is a join type.
type Op string

const (
	OpJoin      Op = "JOIN"
	OpLeftJoin  Op = "LEFT JOIN"
	OpRightJoin Op = "RIGHT JOIN"
	OpFullJoin  Op = "FULL JOIN"
	OpCrossJoin Op = "CROSS JOIN"
	OpInnerJoin Op = "INNER JOIN"
)

var allowedOps = map[Op]bool{
	OpJoin:      true,
	OpLeftJoin:  true,
	OpRightJoin: true,
	OpFullJoin:  true,
	OpCrossJoin: true,
	OpInnerJoin: true,
}

var allowedComparators = map[string]bool{
	"=":  true,
	"<>": true,
	"<":  true,
	"<=": true,
	">":  true,
	">=": true,
}

// Condition is a single ON-clause equality/comparison between two qualified columns.
type Condition struct {
	Left     string
	Operator string
	Right    string
}

// Clause is one joined table plus its ON conditions. CROSS JOIN carries no
// conditions.
type Clause struct {
	Op    Op
	Table string
	On    []Condition
}

// Compile renders clauses into a SQL fragment, one JOIN per clause in order,
// joined by a single space. An empty slice yields "".
func Compile(clauses []Clause) (string, error) {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		frag, err := compileOne(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, frag)
	}
	return strings.Join(parts, " "), nil
}

func compileOne(c Clause) (string, error) {
	if !allowedOps[c.Op] {
		return "", fmt.Errorf("join: unsupported join operator %q", c.Op)
	}
	if c.Table == "" {
		return "", fmt.Errorf("join: table name required")
	}
	table := quoteQualified(c.Table)

	if c.Op == OpCrossJoin {
		return fmt.Sprintf("%s %s", c.Op, table), nil
	}
	if len(c.On) == 0 {
		return "", fmt.Errorf("join: %s on %s requires at least one ON condition", c.Op, c.Table)
	}

	conds := make([]string, 0, len(c.On))
	for _, cond := range c.On {
		if !allowedComparators[cond.Operator] {
			return "", fmt.Errorf("join: unsupported comparator %q", cond.Operator)
		}
		if cond.Left == "" || cond.Right == "" {
			return "", fmt.Errorf("join: ON condition requires both sides")
		}
		conds = append(conds, fmt.Sprintf("%s %s %s", quoteQualified(cond.Left), cond.Operator, quoteQualified(cond.Right)))
	}

	return fmt.Sprintf("%s %s ON %s", c.Op, table, strings.Join(conds, " AND ")), nil
}

// quoteQualified quotes a possibly dotted "table.column" or bare identifier,
// escaping every segment independently.
func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(quoted, ".")
}
