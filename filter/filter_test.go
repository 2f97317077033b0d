package filter

import (
	"reflect"
	"testing"
)

func TestParseImplicitEqDropsFalsy(t *testing.T) {
	node, err := Parse(map[string]any{"category": "", "status": "active"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cmp, ok := node.(Cmp)
	if !ok {
		t.Fatalf("expected single Cmp, got %T", node)
	}
	if cmp.Field != "status" || cmp.Value != "active" {
		t.Fatalf("unexpected clause: %+v", cmp)
	}
}

func TestParseEmptyObjectIsNil(t *testing.T) {
	node, err := Parse(map[string]any{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if node != nil {
		t.Fatalf("expected nil node, got %#v", node)
	}
}

func TestParseAndOr(t *testing.T) {
	raw := map[string]any{
		"$and": []any{
			map[string]any{"category": "docs"},
			map[string]any{"$or": []any{
				map[string]any{"status": "active"},
				map[string]any{"status": "pending"},
			}},
		},
	}
	node, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	and, ok := node.(And)
	if !ok || len(and) != 2 {
		t.Fatalf("expected And of 2, got %#v", node)
	}
	if _, ok := and[1].(Or); !ok {
		t.Fatalf("expected second clause to be Or, got %T", and[1])
	}
}

func TestParseUnknownOperator(t *testing.T) {
	_, err := Parse(map[string]any{"age": map[string]any{"$bogus": 1}})
	if err == nil {
		t.Fatal("expected error for unknown operator")
	}
}

func TestParseTextSearchDefaults(t *testing.T) {
	node, err := Parse(map[string]any{
		"content": map[string]any{"$textSearch": map[string]any{"query": "hello"}},
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ts, ok := node.(TextSearch)
	if !ok {
		t.Fatalf("expected TextSearch, got %T", node)
	}
	if ts.Type != TextSearchPlain || ts.Config != "english" || ts.Query != "hello" {
		t.Fatalf("unexpected defaults: %+v", ts)
	}
}

func TestCompileMetadataScenario(t *testing.T) {
	raw := map[string]any{
		"$and": []any{
			map[string]any{"category": "docs"},
			map[string]any{"views": map[string]any{"$gte": 10}},
			map[string]any{"content": map[string]any{"$textSearch": map[string]any{"query": "hello"}}},
		},
	}
	node, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sql, params, err := Compile(node, CompileOptions{Mode: ModeMetadata, PageContentColumn: "content"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql == "" {
		t.Fatal("expected non-empty SQL")
	}
	// "content" is the page-content column, so it renders as a raw column
	// and binds no metadata key.
	wantParams := []any{"category", "docs", "views", 10, "english", "english", "hello"}
	if !reflect.DeepEqual(params, wantParams) {
		t.Fatalf("params mismatch:\n got: %#v\nwant: %#v", params, wantParams)
	}
}

func TestCompileColumnModeQuotesIdentifiers(t *testing.T) {
	node, err := Parse(map[string]any{"category": "docs"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sql, params, err := Compile(node, CompileOptions{Mode: ModeColumn})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	const want = `WHERE "category" = $1`
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(params, []any{"docs"}) {
		t.Fatalf("params = %#v", params)
	}
}

func TestCompileColumnModeEscapesInjectionInFieldName(t *testing.T) {
	node, err := Parse(map[string]any{`category"; DROP TABLE docs; --`: "x"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sql, _, err := Compile(node, CompileOptions{Mode: ModeColumn})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// pq.QuoteIdentifier escapes embedded quotes by doubling them, so the
	// malicious fragment never closes out of the identifier position.
	if !containsDoubledQuote(sql) {
		t.Fatalf("expected doubled-quote escaping in %q", sql)
	}
}

func containsDoubledQuote(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '"' && s[i+1] == '"' {
			return true
		}
	}
	return false
}

func TestCompileNilNode(t *testing.T) {
	sql, params, err := Compile(nil, CompileOptions{Mode: ModeMetadata})
	if err != nil || sql != "" || params != nil {
		t.Fatalf("expected empty result, got sql=%q params=%#v err=%v", sql, params, err)
	}
}

func TestEvalMatchesCompileSemantics(t *testing.T) {
	node, err := Parse(map[string]any{
		"category": "docs",
		"views":    map[string]any{"$gte": 10},
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	match := map[string]any{"category": "docs", "views": 42}
	noMatch := map[string]any{"category": "docs", "views": 3}
	if !Eval(node, match) {
		t.Fatal("expected match to satisfy filter")
	}
	if Eval(node, noMatch) {
		t.Fatal("expected noMatch to fail filter")
	}
}
