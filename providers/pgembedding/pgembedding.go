// Package pgembedding implements pgstore.Extension on top of the
// pg_embedding Postgres extension: a REAL[] column and its <=>/<->/<~>
// distance operators, indexed with an "ann" HNSW index that requires
// enable_seqscan to be turned off for the duration of the query.
package pgembedding

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/agentplexus/pgstore/pgstore"
	"github.com/agentplexus/pgstore/vector"
)

// Extension adapts pg_embedding to the pgstore.Extension contract.
type Extension struct {
	metric vector.Metric
	dims   int
}

var allowedMetrics = []vector.Metric{vector.MetricCosine, vector.MetricL2, vector.MetricManhattan}

// New validates metric against pg_embedding's supported set and dims, and
// returns a bound Extension.
func New(metric vector.Metric, dims int) (*Extension, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("pgembedding: dims must be positive, got %d", dims)
	}
	if metric == "" {
		metric = vector.MetricCosine
	}
	if !metricAllowed(metric) {
		return nil, fmt.Errorf("pgembedding: metric %q not supported, allowed: %v", metric, allowedMetrics)
	}
	return &Extension{metric: metric, dims: dims}, nil
}

func metricAllowed(m vector.Metric) bool {
	for _, allowed := range allowedMetrics {
		if allowed == m {
			return true
		}
	}
	return false
}

// Name implements pgstore.Extension.
func (e *Extension) Name() string { return "pg_embedding" }

// AllowedMetrics implements pgstore.Extension.
func (e *Extension) AllowedMetrics() []vector.Metric { return allowedMetrics }

// Metric implements pgstore.Extension.
func (e *Extension) Metric() vector.Metric { return e.metric }

// Dims implements pgstore.Extension.
func (e *Extension) Dims() int { return e.dims }

// EnsureExtensionSQL implements pgstore.Extension.
func (e *Extension) EnsureExtensionSQL() []string {
	return []string{`CREATE EXTENSION IF NOT EXISTS embedding`}
}

// ColumnType implements pgstore.Extension. pg_embedding stores embeddings in
// a plain REAL[] column; dimensionality is enforced by the ann index, not
// the column type.
func (e *Extension) ColumnType() string {
	return "REAL[]"
}

// InsertLiteral implements pgstore.Extension.
func (e *Extension) InsertLiteral(v []float32) string {
	return vectorToString(v)
}

// DistanceExpr implements pgstore.Extension. Every pg_embedding operator is
// already a true distance (smaller is closer), so no sign inversion is
// needed here, unlike pgvector's cosine and inner_product.
func (e *Extension) DistanceExpr(embeddingCol, queryParam string) string {
	op := e.distanceOperator()
	return fmt.Sprintf("%s %s %s::real[]", embeddingCol, op, queryParam)
}

func (e *Extension) distanceOperator() string {
	switch e.metric {
	case vector.MetricL2:
		return "<->"
	case vector.MetricManhattan:
		return "<~>"
	default:
		return "<=>"
	}
}

func (e *Extension) opClass() string {
	switch e.metric {
	case vector.MetricManhattan:
		return "ann_manhattan_ops"
	default:
		return "ann_cos_ops"
	}
}

// IndexDDL implements pgstore.Extension. pg_embedding's ann index takes its
// dimensionality and ef_search as index-creation options rather than a
// runtime SET, so everything lands in the primary statement.
func (e *Extension) IndexDDL(indexName, table, column string, opts vector.HNSWOptions) (string, []string) {
	m, efConstruction, efSearch := opts.M, opts.EfConstruction, opts.EfSearch
	if m <= 0 {
		m = 16
	}
	if efConstruction <= 0 {
		efConstruction = 64
	}
	if efSearch <= 0 {
		efSearch = 64
	}

	primary := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (%s %s) WITH (dims=%d, m=%d, efconstruction=%d, efsearch=%d)",
		pq.QuoteIdentifier(indexName), pq.QuoteIdentifier(table), pq.QuoteIdentifier(column), e.opClass(), e.dims, m, efConstruction, efSearch,
	)
	return primary, nil
}

// RunQueryWrapper implements pgstore.Extension. When an ann index is in
// play, pg_embedding's planner needs sequential scan disabled for the
// duration of the query; that must happen inside its own transactional
// scope so it nests as a SAVEPOINT when a QueryHook has already opened a
// transaction (e.g. an RLS hook), rather than opening a second top-level
// one.
func (e *Extension) RunQueryWrapper(ctx context.Context, exec pgstore.Executor, useHNSW bool, next func(ctx context.Context, exec pgstore.Executor) (any, error)) (any, error) {
	if !useHNSW {
		return next(ctx, exec)
	}

	scope, err := exec.BeginScope(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := scope.ExecContext(ctx, "SET LOCAL enable_seqscan = off"); err != nil {
		_ = scope.Rollback()
		return nil, err
	}

	result, err := next(ctx, scope)
	if err != nil {
		_ = scope.Rollback()
		return nil, err
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// vectorToString renders v in pg_embedding's "{v1,v2,...}" literal format.
func vectorToString(v []float32) string {
	strs := make([]string, len(v))
	for i, f := range v {
		strs[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "{" + strings.Join(strs, ",") + "}"
}

var _ pgstore.Extension = (*Extension)(nil)
