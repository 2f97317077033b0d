// Package pgvector implements pgstore.Extension on top of the pgvector
// Postgres extension: a native vector(dims) column and its <=>/<->/<#>
// distance operators.
//
// # Usage
//
//	import (
//		"database/sql"
//		_ "github.com/lib/pq"
//		"github.com/agentplexus/pgstore/pgstore"
//		"github.com/agentplexus/pgstore/providers/pgvector"
//		"github.com/agentplexus/pgstore/vector"
//	)
//
//	db, err := sql.Open("postgres", dsn)
//	ext, err := pgvector.New(vector.MetricCosine, 1536)
//	store := pgstore.New(db, embedder, pgstore.DefaultConfig(ext))
//
// # Metrics
//
// pgvector supports cosine, l2, and inner_product. Cosine and inner_product
// are similarity-like operators in Postgres (larger raw value is closer), so
// Extension.DistanceExpr inverts both into true distances so that every
// metric can share one ascending ORDER BY "_distance".
//
// # Requirements
//
// PostgreSQL with the vector extension installed and CREATE EXTENSION
// permission (or the extension pre-installed by an administrator).
package pgvector
