// Package vector defines the domain types and collaborator interfaces shared
// by the Postgres-backed document store: the document record and the
// embedding collaborator. It has no dependency on any particular SQL driver
// or Postgres extension — those live in providers/pgvector and
// providers/pgembedding, which implement the Extension contract declared in
// package pgstore.
package vector

import "context"

// Document is a stored record: text content, semi-structured metadata, a
// dense embedding, and any caller-declared extra columns.
type Document struct {
	// ID is the row's primary key. Left empty on insert, the store generates one.
	ID string
	// Content is the text stored in the page-content column.
	Content string
	// Metadata is the semi-structured JSON metadata for this document.
	Metadata map[string]any
	// Embedding is the dense vector for this document.
	Embedding []float32
	// Extra holds values for caller-declared extra columns, keyed by column name.
	Extra map[string]any
}

// Reference describes a foreign-key target for an extra column.
type Reference struct {
	// Table is the referenced table name.
	Table string
	// Column is the referenced column; defaults to "id" when empty.
	Column string
}

// ExtraColumn declares a caller-defined first-class column on the store's table.
type ExtraColumn struct {
	// Name is the column name.
	Name string
	// Type is the raw Postgres column type, e.g. "text", "integer".
	Type string
	// Returned includes the column in SELECT result columns when true.
	Returned bool
	// NotNull requires the column on every insert.
	NotNull bool
	// References declares a REFERENCES clause for this column, if any.
	References *Reference
}

// Metric is a distance measure between embeddings.
type Metric string

const (
	// MetricCosine is cosine distance/similarity.
	MetricCosine Metric = "cosine"
	// MetricL2 is Euclidean (L2) distance.
	MetricL2 Metric = "l2"
	// MetricInnerProduct is (negative) inner product distance.
	MetricInnerProduct Metric = "inner_product"
	// MetricManhattan is L1 (Manhattan) distance.
	MetricManhattan Metric = "manhattan"
)

// HNSWOptions tunes an HNSW index build.
type HNSWOptions struct {
	// M is the number of connections per layer.
	M int
	// EfConstruction is the size of the dynamic candidate list during construction.
	EfConstruction int
	// EfSearch is the size of the dynamic candidate list during search.
	EfSearch int
}

// Embedder creates embeddings from text. Its internals are opaque to the store.
type Embedder interface {
	// Embed creates an embedding for a single piece of text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch creates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Model returns the name of the embedding model, for logging.
	Model() string
}
