package pgstore

import (
	"log/slog"

	"github.com/agentplexus/pgstore/observe"
	"github.com/agentplexus/pgstore/vector"
)

// Config aggregates everything a Store needs beyond the connection pool and
// embedder: table shape, the chosen Extension, and the ambient
// logging/tracing/RLS hooks.
type Config struct {
	// TableName is the base table. Defaults to "documents".
	TableName string
	// PageContentColumn is the text column name. Defaults to "content".
	PageContentColumn string
	// Extension is the vector-extension adapter this store is bound to.
	Extension Extension
	// ExtraColumns declares caller-defined first-class columns.
	ExtraColumns []vector.ExtraColumn
	// UseHNSWIndex routes fetches through the extension's query wrapper
	// (e.g. pg_embedding's SET LOCAL enable_seqscan = off).
	UseHNSWIndex bool
	// Logger receives structured operation logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Observer receives span start/end events, if configured.
	Observer observe.Observer
	// QueryHook wraps every query in caller-supplied transactional context
	// (most commonly row-level-security session variables).
	QueryHook QueryHook
}

// DefaultConfig returns a Config with the standard table/column names and no
// extras, hooks, or HNSW usage, bound to ext.
func DefaultConfig(ext Extension) Config {
	return Config{
		TableName:         "documents",
		PageContentColumn: "content",
		Extension:         ext,
		Logger:            slog.Default(),
		Observer:          observe.NoOpObserver{},
	}
}

func (c Config) normalized() Config {
	if c.TableName == "" {
		c.TableName = "documents"
	}
	if c.PageContentColumn == "" {
		c.PageContentColumn = "content"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Observer == nil {
		c.Observer = observe.NoOpObserver{}
	}
	return c
}
