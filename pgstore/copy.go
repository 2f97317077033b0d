package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/agentplexus/pgstore/observe"
	"github.com/agentplexus/pgstore/vector"
)

// CopyDocuments bulk-loads vectors/docs through the driver's COPY protocol
// (pq.CopyIn) instead of a parameterized multi-row INSERT. It is meant for
// large initial loads: COPY does not support ON CONFLICT, so there is no
// upsert-by-id option here the way there is in AddVectors. Each document
// keeps its own ID if set, otherwise one is generated.
func (s *Store) CopyDocuments(ctx context.Context, vectors [][]float32, docs []vector.Document) ([]string, error) {
	if len(vectors) != len(docs) {
		return nil, wrapErr("CopyDocuments", ErrInvalidArgument, fmt.Errorf("len(vectors)=%d != len(documents)=%d", len(vectors), len(docs)))
	}
	if len(docs) == 0 {
		return nil, nil
	}

	start := time.Now()
	ctx, span := s.cfg.Observer.StartSpan(ctx, observe.SpanTypeInsert, "insert", map[string]any{"table": s.cfg.TableName, "count": len(docs), "mode": "copy"})
	var err error
	defer func() { s.logResult("CopyDocuments", start, err); span.End(err) }()

	extraNames := make([]string, len(s.cfg.ExtraColumns))
	for i, c := range s.cfg.ExtraColumns {
		extraNames[i] = c.Name
	}
	cols := append([]string{"id", s.cfg.PageContentColumn, "metadata", "embedding"}, extraNames...)

	tx, txErr := s.db.BeginTx(ctx, nil)
	if txErr != nil {
		err = wrapErr("CopyDocuments", classify(txErr), txErr)
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, prepErr := tx.PrepareContext(ctx, pq.CopyIn(s.cfg.TableName, cols...))
	if prepErr != nil {
		err = wrapErr("CopyDocuments", classify(prepErr), prepErr)
		return nil, err
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id

		metaJSON, mErr := json.Marshal(d.Metadata)
		if mErr != nil {
			err = wrapErr("CopyDocuments", ErrInvalidArgument, mErr)
			_ = stmt.Close()
			return nil, err
		}

		row := []any{id, d.Content, string(metaJSON), s.cfg.Extension.InsertLiteral(vectors[i])}
		for _, ec := range s.cfg.ExtraColumns {
			v, ok := d.Extra[ec.Name]
			if !ok && ec.NotNull {
				err = wrapErr("CopyDocuments", ErrInvalidArgument, fmt.Errorf("extra column %q is required", ec.Name))
				_ = stmt.Close()
				return nil, err
			}
			row = append(row, v)
		}

		if _, execErr := stmt.ExecContext(ctx, row...); execErr != nil {
			err = wrapErr("CopyDocuments", classify(execErr), execErr)
			_ = stmt.Close()
			return nil, err
		}
	}

	if _, execErr := stmt.ExecContext(ctx); execErr != nil {
		err = wrapErr("CopyDocuments", classify(execErr), execErr)
		_ = stmt.Close()
		return nil, err
	}
	if closeErr := stmt.Close(); closeErr != nil {
		err = wrapErr("CopyDocuments", classify(closeErr), closeErr)
		return nil, err
	}
	if commitErr := tx.Commit(); commitErr != nil {
		err = wrapErr("CopyDocuments", classify(commitErr), commitErr)
		return nil, err
	}
	return ids, nil
}
