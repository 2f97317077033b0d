package join

import "testing"

func TestCompileLeftJoin(t *testing.T) {
	clauses := []Clause{{
		Op:    OpLeftJoin,
		Table: "authors",
		On:    []Condition{{Left: "docs.author_id", Operator: "=", Right: "authors.id"}},
	}}
	sql, err := Compile(clauses)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	const want = `LEFT JOIN "authors" ON "docs"."author_id" = "authors"."id"`
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
}

func TestCompileCrossJoinNoOn(t *testing.T) {
	sql, err := Compile([]Clause{{Op: OpCrossJoin, Table: "tags"}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql != `CROSS JOIN "tags"` {
		t.Fatalf("sql = %q", sql)
	}
}

func TestCompileRejectsUnknownOp(t *testing.T) {
	_, err := Compile([]Clause{{Op: "DROP JOIN", Table: "x", On: []Condition{{Left: "a", Operator: "=", Right: "b"}}}})
	if err == nil {
		t.Fatal("expected error for unknown join op")
	}
}

func TestCompileRejectsUnknownComparator(t *testing.T) {
	clauses := []Clause{{
		Op:    OpJoin,
		Table: "authors",
		On:    []Condition{{Left: "a", Operator: "; DROP TABLE x; --", Right: "b"}},
	}}
	_, err := Compile(clauses)
	if err == nil {
		t.Fatal("expected error for disallowed comparator")
	}
}

func TestCompileNonCrossJoinRequiresOn(t *testing.T) {
	_, err := Compile([]Clause{{Op: OpJoin, Table: "authors"}})
	if err == nil {
		t.Fatal("expected error when ON is missing for non-cross join")
	}
}

func TestParseClausesSingleObject(t *testing.T) {
	raw := map[string]any{
		"op":    "JOIN",
		"table": "authors",
		"on": []any{
			map[string]any{"left": "docs.author_id", "operator": "=", "right": "authors.id"},
		},
	}
	clauses, err := ParseClauses(raw)
	if err != nil {
		t.Fatalf("ParseClauses: %v", err)
	}
	if len(clauses) != 1 || clauses[0].Table != "authors" {
		t.Fatalf("unexpected clauses: %#v", clauses)
	}
}

func TestParseClausesList(t *testing.T) {
	raw := []any{
		map[string]any{"op": "CROSS JOIN", "table": "tags"},
		map[string]any{"op": "JOIN", "table": "authors", "on": []any{
			map[string]any{"left": "docs.author_id", "operator": "=", "right": "authors.id"},
		}},
	}
	clauses, err := ParseClauses(raw)
	if err != nil {
		t.Fatalf("ParseClauses: %v", err)
	}
	if len(clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(clauses))
	}
}

func TestParseClausesNil(t *testing.T) {
	clauses, err := ParseClauses(nil)
	if err != nil || clauses != nil {
		t.Fatalf("expected nil, nil, got %#v, %v", clauses, err)
	}
}
