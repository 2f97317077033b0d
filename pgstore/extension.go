package pgstore

import (
	"context"
	"database/sql"

	"github.com/agentplexus/pgstore/vector"
)

// Extension is the seam between the store and a specific Postgres vector
// extension (pgvector, pg_embedding, ...). It owns everything that differs
// between extensions: the column type, the distance expression, index DDL,
// and any query-time transactional requirements.
type Extension interface {
	// Name identifies the extension, e.g. "pgvector" or "pg_embedding".
	Name() string
	// AllowedMetrics lists the distance metrics this extension supports.
	AllowedMetrics() []vector.Metric
	// Metric returns the metric this instance was configured with.
	Metric() vector.Metric
	// Dims returns the embedding dimensionality.
	Dims() int
	// EnsureExtensionSQL returns the statements needed to enable the
	// extension itself (CREATE EXTENSION IF NOT EXISTS ...).
	EnsureExtensionSQL() []string
	// ColumnType returns the SQL type for the embedding column.
	ColumnType() string
	// InsertLiteral renders an embedding as a SQL literal for INSERT/COPY.
	InsertLiteral(v []float32) string
	// DistanceExpr returns a SQL expression computing distance (ascending
	// order = nearest first, regardless of the underlying operator's
	// native ordering) between embeddingCol and the bound parameter
	// queryParam (e.g. "$3").
	DistanceExpr(embeddingCol, queryParam string) string
	// IndexDDL returns the primary CREATE INDEX statement and any
	// follow-up statements (e.g. ALTER INDEX ... SET) for an HNSW index.
	IndexDDL(indexName, table, column string, opts vector.HNSWOptions) (primary string, after []string)
	// RunQueryWrapper runs next, optionally wrapped in whatever
	// transactional scope this extension needs for correct planner
	// behavior (e.g. pg_embedding's SET LOCAL enable_seqscan = off inside
	// its own transaction/savepoint). useHNSW indicates whether an HNSW
	// index is in play for this query.
	RunQueryWrapper(ctx context.Context, exec Executor, useHNSW bool, next func(ctx context.Context, exec Executor) (any, error)) (any, error)
}

// QueryHook wraps every store query in caller-supplied transactional
// context, most commonly row-level-security session variables set via
// SELECT set_config(...). next must be called exactly once; the Executor it
// receives is bound to the hook's transaction. See package rls.
type QueryHook func(ctx context.Context, db *sql.DB, next func(ctx context.Context, exec Executor) (any, error)) (any, error)
