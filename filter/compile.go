package filter

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// CompileOptions parameterizes Compile.
type CompileOptions struct {
	// Mode selects metadata-JSON or first-class-column resolution.
	Mode Mode
	// PageContentColumn, when non-empty, makes a field matching this name
	// resolve to the raw page-content column instead of the metadata path.
	PageContentColumn string
	// Qualify prefixes base-table columns with BaseTable, for disambiguation
	// when a JOIN is present.
	Qualify bool
	// BaseTable is the store's own table, used only when Qualify is true.
	BaseTable string
}

// Compile renders a Node into a SQL fragment prefixed with "WHERE " plus its
// positional parameter list. A nil Node (an empty or fully-dropped filter)
// yields ("", nil, nil) — the caller omits the WHERE clause entirely.
//
// Every field name and scalar value is bound through the returned parameter
// list or the identifier-escape helpers in this file; no user-controlled
// string is ever concatenated directly into the returned fragment.
func Compile(node Node, opts CompileOptions) (string, []any, error) {
	if node == nil {
		return "", nil, nil
	}
	c := &compiler{opts: opts}
	frag, err := c.render(node)
	if err != nil {
		return "", nil, err
	}
	if frag == "" {
		return "", nil, nil
	}
	return "WHERE " + frag, c.params, nil
}

type compiler struct {
	opts   CompileOptions
	params []any
}

func (c *compiler) bind(v any) string {
	c.params = append(c.params, v)
	return fmt.Sprintf("$%d", len(c.params))
}

func (c *compiler) render(n Node) (string, error) {
	switch t := n.(type) {
	case And:
		return c.renderJunction([]Node(t), " AND ")
	case Or:
		return c.renderJunction([]Node(t), " OR ")
	case Cmp:
		return c.renderCmp(t)
	case TextSearch:
		return c.renderTextSearch(t)
	default:
		return "", fmt.Errorf("filter: unknown node type %T", n)
	}
}

func (c *compiler) renderJunction(nodes []Node, sep string) (string, error) {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		frag, err := c.render(n)
		if err != nil {
			return "", err
		}
		if frag != "" {
			parts = append(parts, frag)
		}
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	default:
		return "(" + strings.Join(parts, sep) + ")", nil
	}
}

func sqlOp(op Op) (string, error) {
	switch op {
	case OpEq:
		return "=", nil
	case OpNeq:
		return "<>", nil
	case OpLt:
		return "<", nil
	case OpLte:
		return "<=", nil
	case OpGt:
		return ">", nil
	case OpGte:
		return ">=", nil
	default:
		return "", fmt.Errorf("filter: unsupported operator %q", op)
	}
}

func (c *compiler) renderCmp(cmp Cmp) (string, error) {
	sop, err := sqlOp(cmp.Op)
	if err != nil {
		return "", err
	}
	colExpr, err := c.columnExpr(cmp.Field, cmp.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", colExpr, sop, c.bind(cmp.Value)), nil
}

func (c *compiler) renderTextSearch(ts TextSearch) (string, error) {
	// The dictionary-config argument is bound twice: once for to_tsvector's
	// document side, once for the query-constructor's query side.
	langForVector := c.bind(ts.Config)
	colExpr, err := c.columnExpr(ts.Field, "")
	if err != nil {
		return "", err
	}
	queryFn := textSearchFunc(ts.Type)
	langForQuery := c.bind(ts.Config)
	queryParam := c.bind(ts.Query)
	return fmt.Sprintf("to_tsvector(%s, %s) @@ %s(%s, %s)", langForVector, colExpr, queryFn, langForQuery, queryParam), nil
}

func textSearchFunc(t TextSearchType) string {
	switch t {
	case TextSearchPhrase:
		return "phraseto_tsquery"
	case TextSearchWebsearch:
		return "websearch_to_tsquery"
	default:
		return "plainto_tsquery"
	}
}

// columnExpr resolves field to a SQL expression. value is consulted only to
// pick the JSON accessor/cast in metadata mode; it is not itself rendered.
func (c *compiler) columnExpr(field string, value any) (string, error) {
	if c.opts.PageContentColumn != "" && field == c.opts.PageContentColumn {
		return c.identifier(c.qualifyBare(field)), nil
	}

	switch c.opts.Mode {
	case ModeColumn:
		return c.identifier(c.qualifyBare(field)), nil
	case ModeMetadata:
		arrow, cast := "->>", "text"
		switch {
		case isInt(value):
			arrow, cast = "->", "int"
		case isFloat(value):
			arrow, cast = "->", "float"
		}
		key := c.bind(field)
		return fmt.Sprintf("(%s%s%s)::%s", c.metadataColumn(), arrow, key, cast), nil
	default:
		return "", fmt.Errorf("filter: unknown mode %q", c.opts.Mode)
	}
}

// identifier quotes field as an identifier, splitting on "." so a caller-
// supplied "table.column" key binds as a qualified identifier.
func (c *compiler) identifier(field string) string {
	parts := strings.Split(field, ".")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(quoted, ".")
}

func (c *compiler) metadataColumn() string {
	if c.opts.Qualify && c.opts.BaseTable != "" {
		return pq.QuoteIdentifier(c.opts.BaseTable) + ".metadata"
	}
	return "metadata"
}

// qualifyBare prefixes an unqualified field with the base table when a join
// is present, so an ambiguous column name resolves to the store's own table.
// Fields the caller already qualified (containing a dot) pass through.
func (c *compiler) qualifyBare(field string) string {
	if c.opts.Qualify && c.opts.BaseTable != "" && !strings.Contains(field, ".") {
		return c.opts.BaseTable + "." + field
	}
	return field
}
