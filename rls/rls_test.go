package rls_test

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/agentplexus/pgstore/pgstore"
	"github.com/agentplexus/pgstore/rls"
)

func TestClaimsFuncShape(t *testing.T) {
	var fn rls.ClaimsFunc = func(ctx context.Context) map[string]string {
		return map[string]string{"a": "b"}
	}
	got := fn(context.Background())
	if got["a"] != "b" {
		t.Fatalf("unexpected claims: %#v", got)
	}
}

func TestNewClaimsHookSetsConfigInSortedOrderAndCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	claims := func(ctx context.Context) map[string]string {
		return map[string]string{
			"request.jwt.claim.role": "editor",
			"request.jwt.claim.sub":  "user-1",
		}
	}
	hook := rls.NewClaimsHook(claims)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT set_config\\(\\$1, \\$2, true\\)").
		WithArgs("request.jwt.claim.role", "editor").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT set_config\\(\\$1, \\$2, true\\)").
		WithArgs("request.jwt.claim.sub", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	called := false
	result, err := hook(context.Background(), db, func(ctx context.Context, exec pgstore.Executor) (any, error) {
		called = true
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
	if !called {
		t.Error("expected next to be called")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNewClaimsHookRollsBackWhenNextFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	claims := func(ctx context.Context) map[string]string {
		return map[string]string{"request.jwt.claim.sub": "user-1"}
	}
	hook := rls.NewClaimsHook(claims)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT set_config\\(\\$1, \\$2, true\\)").
		WithArgs("request.jwt.claim.sub", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	wantErr := errors.New("boom")
	_, err = hook(context.Background(), db, func(ctx context.Context, exec pgstore.Executor) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestNewClaimsHookNestsExtensionScopeAsSavepoint proves the hard invariant
// this package exists for: when next opens its own nested scope (the shape
// an Extension.RunQueryWrapper uses for a planner hint), it issues a
// SAVEPOINT against the hook's already-open transaction instead of the
// extension trying to start a second top-level transaction. Only one
// ExpectBegin/ExpectCommit pair is registered, so an extra BeginTx call
// would leave the mock's expectations unmet.
func TestNewClaimsHookNestsExtensionScopeAsSavepoint(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	claims := func(ctx context.Context) map[string]string {
		return map[string]string{"request.jwt.claim.sub": "user-1"}
	}
	hook := rls.NewClaimsHook(claims)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT set_config\\(\\$1, \\$2, true\\)").
		WithArgs("request.jwt.claim.sub", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SAVEPOINT pgstore_sp_\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET LOCAL enable_seqscan = off").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`RELEASE SAVEPOINT pgstore_sp_\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	result, err := hook(context.Background(), db, func(ctx context.Context, exec pgstore.Executor) (any, error) {
		scope, err := exec.BeginScope(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := scope.ExecContext(ctx, "SET LOCAL enable_seqscan = off"); err != nil {
			_ = scope.Rollback()
			return nil, err
		}
		if err := scope.Commit(); err != nil {
			return nil, err
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
