// Package pgstore implements a Postgres-backed document store: table
// provisioning, batched vector insertion, and similarity/MMR retrieval
// compiled through the filter and join DSLs, dispatched via a pluggable
// Extension and an optional RLS QueryHook.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/agentplexus/pgstore/filter"
	"github.com/agentplexus/pgstore/join"
	"github.com/agentplexus/pgstore/mmr"
	"github.com/agentplexus/pgstore/observe"
	"github.com/agentplexus/pgstore/vector"
)

// Store is a Postgres-backed document store bound to one vector Extension.
type Store struct {
	db       *sql.DB
	embedder vector.Embedder
	cfg      Config
}

// New constructs a Store. It does not touch the database; call EnsureTable
// to provision the schema.
func New(db *sql.DB, embedder vector.Embedder, cfg Config) *Store {
	return &Store{db: db, embedder: embedder, cfg: cfg.normalized()}
}

// FilterOptions selects the WHERE clause a query compiles. At most one of
// MetadataFilter or ColumnFilter may be set.
type FilterOptions struct {
	MetadataFilter map[string]any
	ColumnFilter   map[string]any
	// Join is the wire-shaped join DSL: a single object or list of objects.
	// See package join.
	Join any
}

// AddOptions controls AddDocuments/AddVectors behavior.
type AddOptions struct {
	// IDs, if supplied, upserts by these ids instead of generating new
	// ones. Must be the same length as the document batch.
	IDs []string
}

// ScoredDocument pairs a Document with its "_distance" value.
type ScoredDocument struct {
	Document vector.Document
	Distance float64
}

// MMROptions controls MaxMarginalRelevanceSearch. Zero values take the
// package defaults: K=4, FetchK=20, Lambda=0.7.
type MMROptions struct {
	K      int
	FetchK int
	Lambda float64
	Filter FilterOptions
}

// EnsureTable idempotently creates the required extensions, the UUID
// generator, and the store's table with its declared extra columns.
func (s *Store) EnsureTable(ctx context.Context) error {
	start := time.Now()
	ctx, span := s.cfg.Observer.StartSpan(ctx, observe.SpanTypeEnsureTable, "ensure_table", map[string]any{"table": s.cfg.TableName})
	var err error
	defer func() { s.logResult("EnsureTable", start, err); span.End(err) }()

	stmts := []string{`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`}
	stmts = append(stmts, s.cfg.Extension.EnsureExtensionSQL()...)

	cols := []string{
		"id uuid PRIMARY KEY DEFAULT uuid_generate_v4()",
		fmt.Sprintf("%s text", pq.QuoteIdentifier(s.cfg.PageContentColumn)),
		"metadata jsonb",
		fmt.Sprintf("embedding %s", s.cfg.Extension.ColumnType()),
	}
	for _, extra := range s.cfg.ExtraColumns {
		col := fmt.Sprintf("%s %s", pq.QuoteIdentifier(extra.Name), extra.Type)
		if extra.NotNull {
			col += " NOT NULL"
		}
		if extra.References != nil {
			refCol := extra.References.Column
			if refCol == "" {
				refCol = "id"
			}
			col += fmt.Sprintf(" REFERENCES %s(%s)", pq.QuoteIdentifier(extra.References.Table), pq.QuoteIdentifier(refCol))
		}
		cols = append(cols, col)
	}
	stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pq.QuoteIdentifier(s.cfg.TableName), strings.Join(cols, ", ")))

	for _, stmt := range stmts {
		if execErr := s.exec(ctx, stmt); execErr != nil {
			err = wrapErr("EnsureTable", classify(execErr), execErr)
			return err
		}
	}
	return nil
}

func (s *Store) exec(ctx context.Context, stmt string, args ...any) error {
	_, err := s.db.ExecContext(ctx, stmt, args...)
	return err
}

// AddDocuments embeds each document's Content and delegates to AddVectors.
func (s *Store) AddDocuments(ctx context.Context, docs []vector.Document, opts AddOptions) ([]string, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, wrapErr("AddDocuments", ErrConnectivity, err)
	}
	return s.AddVectors(ctx, embeddings, docs, opts)
}

// AddVectors writes a batch of documents with caller-supplied embeddings in
// a single multi-row INSERT. If opts.IDs is set, rows upsert by id;
// otherwise a fresh id is generated per document that doesn't already carry
// one. Unknown vector.Document.Extra keys are silently discarded.
func (s *Store) AddVectors(ctx context.Context, vectors [][]float32, docs []vector.Document, opts AddOptions) ([]string, error) {
	if len(vectors) != len(docs) {
		return nil, wrapErr("AddVectors", ErrInvalidArgument, fmt.Errorf("len(vectors)=%d != len(documents)=%d", len(vectors), len(docs)))
	}
	if len(opts.IDs) > 0 && len(opts.IDs) != len(docs) {
		return nil, wrapErr("AddVectors", ErrInvalidArgument, fmt.Errorf("len(ids)=%d != len(documents)=%d", len(opts.IDs), len(docs)))
	}

	start := time.Now()
	ctx, span := s.cfg.Observer.StartSpan(ctx, observe.SpanTypeInsert, "insert", map[string]any{"table": s.cfg.TableName, "count": len(docs)})
	var err error
	defer func() { s.logResult("AddVectors", start, err); span.End(err) }()

	ids := make([]string, len(docs))
	for i, d := range docs {
		switch {
		case len(opts.IDs) > 0:
			ids[i] = opts.IDs[i]
		case d.ID != "":
			ids[i] = d.ID
		default:
			ids[i] = uuid.NewString()
		}
	}

	extraNames := make([]string, len(s.cfg.ExtraColumns))
	for i, c := range s.cfg.ExtraColumns {
		extraNames[i] = c.Name
	}

	cols := append([]string{"id", s.cfg.PageContentColumn, "metadata", "embedding"}, extraNames...)
	quotedCols := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = pq.QuoteIdentifier(c)
	}

	rowsSQL := make([]string, len(docs))
	var params []any
	for i, d := range docs {
		metaJSON, mErr := json.Marshal(d.Metadata)
		if mErr != nil {
			err = wrapErr("AddVectors", ErrInvalidArgument, mErr)
			return nil, err
		}

		placeholders := make([]string, 0, len(cols))
		params = append(params, ids[i])
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(params)))
		params = append(params, d.Content)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(params)))
		params = append(params, string(metaJSON))
		placeholders = append(placeholders, fmt.Sprintf("$%d::jsonb", len(params)))
		params = append(params, s.cfg.Extension.InsertLiteral(vectors[i]))
		placeholders = append(placeholders, fmt.Sprintf("$%d::%s", len(params), s.cfg.Extension.ColumnType()))

		for _, ec := range s.cfg.ExtraColumns {
			v, ok := d.Extra[ec.Name]
			if !ok && ec.NotNull {
				err = wrapErr("AddVectors", ErrInvalidArgument, fmt.Errorf("extra column %q is required", ec.Name))
				return nil, err
			}
			params = append(params, v)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(params)))
		}
		rowsSQL[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	conflictSet := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		q := pq.QuoteIdentifier(c)
		conflictSet = append(conflictSet, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}

	sqlStr := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON CONFLICT (id) DO UPDATE SET %s",
		pq.QuoteIdentifier(s.cfg.TableName),
		strings.Join(quotedCols, ", "),
		strings.Join(rowsSQL, ", "),
		strings.Join(conflictSet, ", "),
	)

	if execErr := s.exec(ctx, sqlStr, params...); execErr != nil {
		err = wrapErr("AddVectors", classify(execErr), execErr)
		return nil, err
	}
	return ids, nil
}

// SimilaritySearchVectorWithScore returns up to k documents nearest to vec,
// each paired with its "_distance" value, ascending (nearest first).
func (s *Store) SimilaritySearchVectorWithScore(ctx context.Context, vec []float32, k int, opts FilterOptions) ([]ScoredDocument, error) {
	start := time.Now()
	ctx, span := s.cfg.Observer.StartSpan(ctx, observe.SpanTypeSimilaritySearch, "similarity_search", map[string]any{"table": s.cfg.TableName, "k": k})
	var err error
	defer func() { s.logResult("SimilaritySearchVectorWithScore", start, err); span.End(err) }()

	docs, _, fetchErr := s.fetchCandidates(ctx, vec, k, opts, false)
	if fetchErr != nil {
		err = fetchErr
		return nil, err
	}
	return docs, nil
}

// SimilaritySearch embeds text and returns up to k nearest documents.
func (s *Store) SimilaritySearch(ctx context.Context, text string, k int, opts FilterOptions) ([]vector.Document, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, wrapErr("SimilaritySearch", ErrConnectivity, err)
	}
	scored, err := s.SimilaritySearchVectorWithScore(ctx, vec, k, opts)
	if err != nil {
		return nil, err
	}
	docs := make([]vector.Document, len(scored))
	for i, sd := range scored {
		docs[i] = sd.Document
	}
	return docs, nil
}

// MaxMarginalRelevanceSearch fetches opts.FetchK candidates (with their
// embeddings), re-ranks them with the mmr package, and returns up to
// opts.K documents in MMR order.
func (s *Store) MaxMarginalRelevanceSearch(ctx context.Context, text string, opts MMROptions) ([]vector.Document, error) {
	if opts.K <= 0 {
		opts.K = 4
	}
	if opts.FetchK <= 0 {
		opts.FetchK = 20
	}
	if opts.Lambda == 0 {
		opts.Lambda = 0.7
	}

	start := time.Now()
	ctx, span := s.cfg.Observer.StartSpan(ctx, observe.SpanTypeMMRSearch, "mmr_search", map[string]any{"table": s.cfg.TableName, "k": opts.K, "fetch_k": opts.FetchK})
	var err error
	defer func() { s.logResult("MaxMarginalRelevanceSearch", start, err); span.End(err) }()

	vec, embErr := s.embedder.Embed(ctx, text)
	if embErr != nil {
		err = wrapErr("MaxMarginalRelevanceSearch", ErrConnectivity, embErr)
		return nil, err
	}

	scored, embeddings, fetchErr := s.fetchCandidates(ctx, vec, opts.FetchK, opts.Filter, true)
	if fetchErr != nil {
		err = fetchErr
		return nil, err
	}

	indices := mmr.Select(vec, embeddings, opts.Lambda, opts.K)
	docs := make([]vector.Document, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(scored) {
			continue
		}
		docs = append(docs, scored[idx].Document)
	}
	return docs, nil
}

// BuildIndex issues the extension-specific HNSW DDL for name.
func (s *Store) BuildIndex(ctx context.Context, name string, opts vector.HNSWOptions) error {
	start := time.Now()
	ctx, span := s.cfg.Observer.StartSpan(ctx, observe.SpanTypeBuildIndex, "build_index", map[string]any{"table": s.cfg.TableName, "index": name})
	var err error
	defer func() { s.logResult("BuildIndex", start, err); span.End(err) }()

	primary, after := s.cfg.Extension.IndexDDL(name, s.cfg.TableName, "embedding", opts)
	if execErr := s.exec(ctx, primary); execErr != nil {
		err = wrapErr("BuildIndex", classify(execErr), execErr)
		return err
	}
	for _, stmt := range after {
		if execErr := s.exec(ctx, stmt); execErr != nil {
			err = wrapErr("BuildIndex", classify(execErr), execErr)
			return err
		}
	}
	return nil
}

// DropIndex drops name if it exists; dropping a missing index is a no-op.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	start := time.Now()
	ctx, span := s.cfg.Observer.StartSpan(ctx, observe.SpanTypeDropIndex, "drop_index", map[string]any{"table": s.cfg.TableName, "index": name})
	var err error
	defer func() { s.logResult("DropIndex", start, err); span.End(err) }()

	if execErr := s.exec(ctx, fmt.Sprintf("DROP INDEX IF EXISTS %s", pq.QuoteIdentifier(name))); execErr != nil {
		err = wrapErr("DropIndex", classify(execErr), execErr)
	}
	return err
}

// fetchCandidates runs the central candidate-fetch pipeline shared by
// similarity search and MMR: compile join + filter, assemble the SELECT,
// dispatch through runQuery, and scan rows.
func (s *Store) fetchCandidates(ctx context.Context, queryVec []float32, k int, opts FilterOptions, includeEmbedding bool) ([]ScoredDocument, [][]float32, error) {
	if opts.MetadataFilter != nil && opts.ColumnFilter != nil {
		return nil, nil, wrapErr("fetchCandidates", ErrInvalidArgument, fmt.Errorf("metadataFilter and columnFilter are mutually exclusive"))
	}

	joinClauses, err := join.ParseClauses(opts.Join)
	if err != nil {
		return nil, nil, wrapErr("fetchCandidates", ErrInvalidArgument, err)
	}
	qualify := len(joinClauses) > 0

	mode := filter.ModeMetadata
	var rawFilter map[string]any
	switch {
	case opts.ColumnFilter != nil:
		mode, rawFilter = filter.ModeColumn, opts.ColumnFilter
	case opts.MetadataFilter != nil:
		rawFilter = opts.MetadataFilter
	}

	node, err := filter.Parse(rawFilter)
	if err != nil {
		return nil, nil, wrapErr("fetchCandidates", ErrInvalidArgument, err)
	}

	whereSQL, whereParams, err := filter.Compile(node, filter.CompileOptions{
		Mode:              mode,
		PageContentColumn: s.cfg.PageContentColumn,
		Qualify:           qualify,
		BaseTable:         s.cfg.TableName,
	})
	if err != nil {
		return nil, nil, wrapErr("fetchCandidates", ErrInvalidArgument, err)
	}

	joinSQL, err := join.Compile(joinClauses)
	if err != nil {
		return nil, nil, wrapErr("fetchCandidates", ErrInvalidArgument, err)
	}

	base := pq.QuoteIdentifier(s.cfg.TableName)
	selectCols := s.selectColumns(qualify, includeEmbedding)

	// The query embedding is always bound at $1; filter parameters are
	// appended after it, with their placeholders shifted accordingly.
	shiftedWhere, shiftedParams := shiftPlaceholders(whereSQL, whereParams, 1)

	embeddingCol := "embedding"
	if qualify {
		embeddingCol = base + ".embedding"
	}
	distExpr := s.cfg.Extension.DistanceExpr(embeddingCol, "$1")

	sqlStr := fmt.Sprintf(`SELECT %s, %s AS "_distance" FROM %s`, selectCols, distExpr, base)
	if joinSQL != "" {
		sqlStr += " " + joinSQL
	}
	if shiftedWhere != "" {
		sqlStr += " " + shiftedWhere
	}
	sqlStr += fmt.Sprintf(` ORDER BY "_distance" LIMIT $%d`, len(shiftedParams)+2)

	params := append([]any{s.cfg.Extension.InsertLiteral(queryVec)}, shiftedParams...)
	params = append(params, k)

	result, runErr := s.runQuery(ctx, func(ctx context.Context, exec Executor) (any, error) {
		rows, qErr := exec.QueryContext(ctx, sqlStr, params...)
		if qErr != nil {
			return nil, qErr
		}
		defer rows.Close()
		return s.scanRows(rows, includeEmbedding)
	})
	if runErr != nil {
		return nil, nil, wrapErr("fetchCandidates", classify(runErr), runErr)
	}

	scanned := result.(scanResult)
	return scanned.docs, scanned.embeddings, nil
}

// runQuery is the sole transactional boundary: it hands the query closure
// to the extension's wrapper (nested, in turn, inside the caller's
// QueryHook when one is configured).
func (s *Store) runQuery(ctx context.Context, fn func(ctx context.Context, exec Executor) (any, error)) (any, error) {
	extWrapped := func(ctx context.Context, exec Executor) (any, error) {
		return s.cfg.Extension.RunQueryWrapper(ctx, exec, s.cfg.UseHNSWIndex, fn)
	}
	if s.cfg.QueryHook != nil {
		return s.cfg.QueryHook(ctx, s.db, extWrapped)
	}
	return extWrapped(ctx, WrapDB(s.db))
}

func (s *Store) selectColumns(qualify, includeEmbedding bool) string {
	base := pq.QuoteIdentifier(s.cfg.TableName)
	cols := []string{"id", s.cfg.PageContentColumn, "metadata"}
	for _, c := range s.cfg.ExtraColumns {
		if c.Returned {
			cols = append(cols, c.Name)
		}
	}
	if includeEmbedding {
		cols = append(cols, "embedding")
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		q := pq.QuoteIdentifier(c)
		if qualify {
			parts[i] = fmt.Sprintf("%s.%s AS %s", base, q, q)
		} else {
			parts[i] = q
		}
	}
	return strings.Join(parts, ", ")
}

type scanResult struct {
	docs       []ScoredDocument
	embeddings [][]float32
}

func (s *Store) scanRows(rows *sql.Rows, includeEmbedding bool) (scanResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return scanResult{}, err
	}

	var result scanResult
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return scanResult{}, err
		}

		doc := vector.Document{Extra: map[string]any{}}
		var distance float64
		var embeddingRaw any

		for i, col := range cols {
			v := vals[i]
			switch col {
			case "id":
				doc.ID = toString(v)
			case s.cfg.PageContentColumn:
				doc.Content = toString(v)
			case "metadata":
				doc.Metadata = decodeMetadata(v)
			case "_distance":
				distance, _ = toFloat(v)
			case "embedding":
				embeddingRaw = v
			default:
				if b, ok := v.([]byte); ok {
					doc.Extra[col] = string(b)
				} else {
					doc.Extra[col] = v
				}
			}
		}

		if includeEmbedding {
			vec, perr := parseEmbeddingLiteral(embeddingRaw)
			if perr != nil {
				return scanResult{}, perr
			}
			result.embeddings = append(result.embeddings, vec)
		}

		result.docs = append(result.docs, ScoredDocument{Document: doc, Distance: distance})
	}
	return result, rows.Err()
}

func (s *Store) logResult(op string, start time.Time, err error) {
	latency := time.Since(start)
	if err != nil {
		s.cfg.Logger.Error("pgstore operation failed", "op", op, "table", s.cfg.TableName, "latency_ms", latency.Milliseconds(), "error", err)
		return
	}
	s.cfg.Logger.Info("pgstore operation succeeded", "op", op, "table", s.cfg.TableName, "latency_ms", latency.Milliseconds())
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// shiftPlaceholders rewrites $N references in a compiled SQL fragment by a
// fixed offset, so filter parameters can be appended after a leading
// extension-owned parameter (the query embedding).
func shiftPlaceholders(sqlFrag string, params []any, offset int) (string, []any) {
	if sqlFrag == "" {
		return "", nil
	}
	shifted := placeholderRe.ReplaceAllStringFunc(sqlFrag, func(m string) string {
		n, _ := strconv.Atoi(m[1:])
		return fmt.Sprintf("$%d", n+offset)
	})
	return shifted, params
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case []byte:
		f, err := strconv.ParseFloat(string(t), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func decodeMetadata(v any) map[string]any {
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// parseEmbeddingLiteral parses either pgvector's "[v1,v2,...]" or
// pg_embedding's "{v1,v2,...}" text representation of a stored embedding.
func parseEmbeddingLiteral(v any) ([]float32, error) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("pgstore: unexpected embedding column type %T", v)
	}
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return nil, fmt.Errorf("pgstore: malformed embedding literal %q", s)
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return []float32{}, nil
	}
	parts := strings.Split(inner, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("pgstore: malformed embedding literal %q: %w", s, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return ErrConnectivity
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code.Class() {
		case "42": // syntax_error_or_access_rule_violation: includes duplicate table/column
			return ErrSchemaConflict
		case "40": // transaction_rollback: serialization/deadlock failures
			return ErrSerialization
		case "08": // connection_exception
			return ErrConnectivity
		}
	}
	return ErrConnectivity
}
