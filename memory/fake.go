package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/agentplexus/pgstore/pgstore"
	"github.com/agentplexus/pgstore/vector"
)

// FakeExtension is a minimal pgstore.Extension for driving pgstore.Store's
// query assembly (join clauses, column/metadata filters, RLS/HNSW scope
// composition) in tests, without a real vector extension's operator set or
// a live Postgres connection. It renders embeddings with the same
// bracket-delimited literal format providers/pgvector uses, and its
// RunQueryWrapper optionally opens its own nested Scope, mirroring
// pg_embedding's SET LOCAL requirement, so a QueryHook (e.g.
// rls.NewClaimsHook) composed with it can be exercised end to end against a
// mocked *sql.DB.
type FakeExtension struct {
	dims int
	// ScopeStatement is issued inside the nested Scope RunQueryWrapper opens
	// when useHNSW is true. Defaults to a harmless SET LOCAL.
	ScopeStatement string
}

// NewFakeExtension returns a FakeExtension for the given embedding
// dimensionality.
func NewFakeExtension(dims int) *FakeExtension {
	return &FakeExtension{dims: dims, ScopeStatement: "SET LOCAL fake_planner_hint = on"}
}

func (f *FakeExtension) Name() string { return "fake" }

func (f *FakeExtension) AllowedMetrics() []vector.Metric {
	return []vector.Metric{vector.MetricCosine}
}

func (f *FakeExtension) Metric() vector.Metric { return vector.MetricCosine }

func (f *FakeExtension) Dims() int { return f.dims }

func (f *FakeExtension) EnsureExtensionSQL() []string { return nil }

func (f *FakeExtension) ColumnType() string { return "DOUBLE PRECISION[]" }

func (f *FakeExtension) InsertLiteral(v []float32) string {
	strs := make([]string, len(v))
	for i, x := range v {
		strs[i] = strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return "[" + strings.Join(strs, ",") + "]"
}

func (f *FakeExtension) DistanceExpr(embeddingCol, queryParam string) string {
	return fmt.Sprintf("%s <-> %s::float8[]", embeddingCol, queryParam)
}

func (f *FakeExtension) IndexDDL(indexName, table, column string, opts vector.HNSWOptions) (string, []string) {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, table, column), nil
}

// RunQueryWrapper runs next directly when useHNSW is false. When true, it
// opens a nested Scope, issues ScopeStatement, then runs next inside it,
// committing or rolling back depending on the result — the same shape
// providers/pgembedding.Extension.RunQueryWrapper uses for its SET LOCAL
// enable_seqscan requirement, so tests can exercise the SAVEPOINT-nesting
// contract a QueryHook depends on without a real extension.
func (f *FakeExtension) RunQueryWrapper(ctx context.Context, exec pgstore.Executor, useHNSW bool, next func(ctx context.Context, exec pgstore.Executor) (any, error)) (any, error) {
	if !useHNSW {
		return next(ctx, exec)
	}
	scope, err := exec.BeginScope(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := scope.ExecContext(ctx, f.ScopeStatement); err != nil {
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

var _ pgstore.Extension = (*FakeExtension)(nil)
