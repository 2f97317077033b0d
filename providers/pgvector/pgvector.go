// Package pgvector implements pgstore.Extension on top of the pgvector
// Postgres extension: a native vector(dims) column and its <=>/<->/<#>
// distance operators.
package pgvector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/agentplexus/pgstore/pgstore"
	"github.com/agentplexus/pgstore/vector"
)

// Extension adapts pgvector to the pgstore.Extension contract.
type Extension struct {
	metric vector.Metric
	dims   int
}

var allowedMetrics = []vector.Metric{vector.MetricCosine, vector.MetricL2, vector.MetricInnerProduct}

// New validates metric against pgvector's supported set and dims, and
// returns a bound Extension.
func New(metric vector.Metric, dims int) (*Extension, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("pgvector: dims must be positive, got %d", dims)
	}
	if metric == "" {
		metric = vector.MetricCosine
	}
	if !metricAllowed(metric) {
		return nil, fmt.Errorf("pgvector: metric %q not supported, allowed: %v", metric, allowedMetrics)
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
func (e *Extension) Name() string { return "pgvector" }

// AllowedMetrics implements pgstore.Extension.
func (e *Extension) AllowedMetrics() []vector.Metric { return allowedMetrics }

// Metric implements pgstore.Extension.
func (e *Extension) Metric() vector.Metric { return e.metric }

// Dims implements pgstore.Extension.
func (e *Extension) Dims() int { return e.dims }

// EnsureExtensionSQL implements pgstore.Extension.
func (e *Extension) EnsureExtensionSQL() []string {
	return []string{`CREATE EXTENSION IF NOT EXISTS vector`}
}

// ColumnType implements pgstore.Extension.
func (e *Extension) ColumnType() string {
	return fmt.Sprintf("vector(%d)", e.dims)
}

// InsertLiteral implements pgstore.Extension.
func (e *Extension) InsertLiteral(v []float32) string {
	return vectorToString(v)
}

// DistanceExpr implements pgstore.Extension. Cosine and inner-product are
// similarity-like (larger is better), so both are inverted into a true
// distance here; ascending ORDER BY "_distance" is always nearest-first.
func (e *Extension) DistanceExpr(embeddingCol, queryParam string) string {
	switch e.metric {
	case vector.MetricL2:
		return fmt.Sprintf("%s <-> %s::vector", embeddingCol, queryParam)
	case vector.MetricInnerProduct:
		return fmt.Sprintf("(%s <#> %s::vector) * -1", embeddingCol, queryParam)
	default: // cosine
		return fmt.Sprintf("1 - (%s <=> %s::vector)", embeddingCol, queryParam)
	}
}

func (e *Extension) opClass() string {
	switch e.metric {
	case vector.MetricL2:
		return "vector_l2_ops"
	case vector.MetricInnerProduct:
		return "vector_ip_ops"
	default:
		return "vector_cosine_ops"
	}
}

// IndexDDL implements pgstore.Extension.
func (e *Extension) IndexDDL(indexName, table, column string, opts vector.HNSWOptions) (string, []string) {
	m, efConstruction := opts.M, opts.EfConstruction
	if m <= 0 {
		m = 16
	}
	if efConstruction <= 0 {
		efConstruction = 64
	}

	primary := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (%s %s) WITH (m = %d, ef_construction = %d)",
		pq.QuoteIdentifier(indexName), pq.QuoteIdentifier(table), pq.QuoteIdentifier(column), e.opClass(), m, efConstruction,
	)

	var after []string
	if opts.EfSearch > 0 {
		after = append(after, fmt.Sprintf("SET hnsw.ef_search = %d", opts.EfSearch))
	}
	return primary, after
}

// RunQueryWrapper implements pgstore.Extension. pgvector needs no special
// transactional scope for HNSW queries, so this is the identity wrapper.
func (e *Extension) RunQueryWrapper(ctx context.Context, exec pgstore.Executor, useHNSW bool, next func(ctx context.Context, exec pgstore.Executor) (any, error)) (any, error) {
	return next(ctx, exec)
}

// vectorToString renders v in pgvector's "[v1,v2,...]" literal format.
func vectorToString(v []float32) string {
	strs := make([]string, len(v))
	for i, f := range v {
		strs[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(strs, ",") + "]"
}

var _ pgstore.Extension = (*Extension)(nil)
