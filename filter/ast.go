package filter

// Mode selects how a field name resolves to a SQL column expression:
// against the JSON metadata column, or against a first-class column.
type Mode string

const (
	// ModeMetadata resolves fields as metadata->>'key' / metadata->'key' paths.
	ModeMetadata Mode = "metadata"
	// ModeColumn resolves fields as first-class, possibly qualified, columns.
	ModeColumn Mode = "column"
)

// Op is a scalar comparison operator.
type Op string

const (
	OpEq  Op = "$eq"
	OpNeq Op = "$neq"
	OpLt  Op = "$lt"
	OpLte Op = "$lte"
	OpGt  Op = "$gt"
	OpGte Op = "$gte"
)

// TextSearchType selects the Postgres full-text query constructor.
type TextSearchType string

const (
	TextSearchPlain     TextSearchType = "plain"
	TextSearchPhrase    TextSearchType = "phrase"
	TextSearchWebsearch TextSearchType = "websearch"
)

// Node is a member of the filter AST: And, Or, Cmp, or TextSearch.
type Node interface {
	isNode()
}

// And is a conjunction of child nodes.
type And []Node

func (And) isNode() {}

// Or is a disjunction of child nodes.
type Or []Node

func (Or) isNode() {}

// Cmp is a single scalar comparison against a field.
type Cmp struct {
	Field string
	Op    Op
	Value any
}

func (Cmp) isNode() {}

// TextSearch is a full-text search predicate against a text field.
type TextSearch struct {
	Field  string
	Query  string
	Type   TextSearchType
	Config string
}

func (TextSearch) isNode() {}
