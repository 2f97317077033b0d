// Package rls provides a pgstore.QueryHook that wraps every query in a
// transaction setting session variables for Postgres row-level-security
// policies (e.g. request.jwt.claims) via set_config.
package rls

import (
	"context"
	"database/sql"
	"sort"

	"github.com/agentplexus/pgstore/pgstore"
)

// ClaimsFunc extracts the session variables to set for a query, keyed by
// the Postgres setting name (e.g. "request.jwt.claim.sub").
type ClaimsFunc func(ctx context.Context) map[string]string

// NewClaimsHook returns a pgstore.QueryHook that opens a transaction, sets
// each claim with SELECT set_config($1, $2, true) (transaction-local, so it
// never leaks across pooled connections), then runs next inside that
// transaction. If the extension wrapper also needs its own transactional
// scope (e.g. pg_embedding's HNSW query-planner hint), it nests as a
// SAVEPOINT via pgstore.Executor.BeginScope rather than opening a second
// top-level transaction.
func NewClaimsHook(claims ClaimsFunc) pgstore.QueryHook {
	return func(ctx context.Context, db *sql.DB, next func(ctx context.Context, exec pgstore.Executor) (any, error)) (any, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}

		scope := pgstore.WrapTx(tx)
		set := claims(ctx)
		keys := make([]string, 0, len(set))
		for key := range set {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, err := scope.ExecContext(ctx, "SELECT set_config($1, $2, true)", key, set[key]); err != nil {
				_ = tx.Rollback()
				return nil, err
			}
		}

		result, err := next(ctx, scope)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return result, nil
	}
}
