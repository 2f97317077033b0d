// Package pgembedding implements pgstore.Extension on top of Neon's
// pg_embedding extension: a REAL[] column and its <=>/<->/<~> distance
// operators, with an HNSW ("ann") index.
//
// # Usage
//
//	import (
//		"database/sql"
//		_ "github.com/lib/pq"
//		"github.com/agentplexus/pgstore/pgstore"
//		"github.com/agentplexus/pgstore/providers/pgembedding"
//		"github.com/agentplexus/pgstore/vector"
//	)
//
//	db, err := sql.Open("postgres", dsn)
//	ext, err := pgembedding.New(vector.MetricCosine, 1536)
//	cfg := pgstore.DefaultConfig(ext)
//	cfg.UseHNSWIndex = true
//	store := pgstore.New(db, embedder, cfg)
//
// # Metrics
//
// pg_embedding supports cosine, l2, and manhattan. All three of its
// operators are already true distances, so Extension.DistanceExpr needs no
// sign inversion, unlike pgvector's cosine and inner_product.
//
// # HNSW query requirement
//
// pg_embedding's planner does not reliably choose the ann index unless
// sequential scan is disabled for the query. Extension.RunQueryWrapper opens
// a nested transactional Scope and issues SET LOCAL enable_seqscan = off
// before running the query, nesting as a SAVEPOINT when a QueryHook (e.g.
// row-level security) has already opened a transaction.
package pgembedding
