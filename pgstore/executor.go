package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
)

// Executor runs queries against either a *sql.DB or a *sql.Tx, and can open
// a nested Scope. BeginScope opens a real transaction on a DB-backed
// Executor and a SAVEPOINT on a Tx-backed one, so an extension that needs
// its own transactional boundary (pg_embedding's HNSW query-planner hint)
// nests correctly under an RLS QueryHook's transaction instead of trying to
// open a second top-level one.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginScope(ctx context.Context) (Scope, error)
}

// Scope is a nested Executor that must be closed with Commit or Rollback.
type Scope interface {
	Executor
	Commit() error
	Rollback() error
}

// WrapDB adapts a *sql.DB to Executor.
func WrapDB(db *sql.DB) Executor { return dbExecutor{db: db} }

// WrapTx adapts a *sql.Tx to Executor.
func WrapTx(tx *sql.Tx) Executor { return txExecutor{tx: tx} }

type dbExecutor struct{ db *sql.DB }

func (d dbExecutor) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

func (d dbExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

func (d dbExecutor) BeginScope(ctx context.Context) (Scope, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return txScope{txExecutor: txExecutor{tx: tx}, tx: tx}, nil
}

type txExecutor struct{ tx *sql.Tx }

func (t txExecutor) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t txExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

var savepointSeq atomic.Uint64

func (t txExecutor) BeginScope(ctx context.Context) (Scope, error) {
	name := fmt.Sprintf("pgstore_sp_%d", savepointSeq.Add(1))
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, err
	}
	return savepointScope{txExecutor: t, name: name}, nil
}

// txScope is the top-level transaction opened by dbExecutor.BeginScope.
type txScope struct {
	txExecutor
	tx *sql.Tx
}

func (s txScope) Commit() error   { return s.tx.Commit() }
func (s txScope) Rollback() error { return s.tx.Rollback() }

// savepointScope is a transaction nested inside an already-open *sql.Tx.
type savepointScope struct {
	txExecutor
	name string
}

func (s savepointScope) Commit() error {
	_, err := s.tx.ExecContext(context.Background(), "RELEASE SAVEPOINT "+s.name)
	return err
}

func (s savepointScope) Rollback() error {
	_, err := s.tx.ExecContext(context.Background(), "ROLLBACK TO SAVEPOINT "+s.name)
	return err
}
