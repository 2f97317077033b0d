package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Inspector reads Postgres catalog state for integration tests asserting
// idempotence: EnsureTable called twice, or BuildIndex followed by
// DropIndex, should leave the catalog exactly as before.
type Inspector struct {
	db *sql.DB
}

// NewInspector returns an Inspector over db.
func NewInspector(db *sql.DB) *Inspector {
	return &Inspector{db: db}
}

// TableExists reports whether a table named name exists in the current schema.
func (i *Inspector) TableExists(ctx context.Context, name string) (bool, error) {
	const query = `SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)`
	var exists bool
	if err := i.db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("pgvector: check table existence: %w", err)
	}
	return exists, nil
}

// IndexExists reports whether an index named name exists.
func (i *Inspector) IndexExists(ctx context.Context, name string) (bool, error) {
	const query = `SELECT EXISTS (SELECT FROM pg_indexes WHERE indexname = $1)`
	var exists bool
	if err := i.db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("pgvector: check index existence: %w", err)
	}
	return exists, nil
}

// RowCount returns the row count of table.
func (i *Inspector) RowCount(ctx context.Context, table string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", pq.QuoteIdentifier(table))
	var count int64
	if err := i.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("pgvector: row count: %w", err)
	}
	return count, nil
}
