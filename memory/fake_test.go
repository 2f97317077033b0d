package memory

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/agentplexus/pgstore/pgstore"
)

// fakeResult satisfies sql.Result without a real driver.
type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 0, nil }

// fakeScope is a hand-rolled pgstore.Scope double. Its QueryContext is never
// exercised by these tests (RunQueryWrapper only ever calls ExecContext on
// it directly), so it panics if ever called, to flag a test that outgrew
// this double's capabilities.
type fakeScope struct {
	execCalls             []string
	committed, rolledBack bool
}

func (s *fakeScope) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	panic("fakeScope.QueryContext: not supported by this double")
}

func (s *fakeScope) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.execCalls = append(s.execCalls, query)
	return fakeResult{}, nil
}

func (s *fakeScope) BeginScope(ctx context.Context) (pgstore.Scope, error) {
	return nil, errors.New("fakeScope: nested scopes not supported by this double")
}

func (s *fakeScope) Commit() error   { s.committed = true; return nil }
func (s *fakeScope) Rollback() error { s.rolledBack = true; return nil }

// fakeExecutor is a hand-rolled pgstore.Executor double whose BeginScope
// hands back a fakeScope, so RunQueryWrapper's SAVEPOINT-equivalent nesting
// can be observed without a real *sql.DB.
type fakeExecutor struct {
	scope *fakeScope
}

func (e *fakeExecutor) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	panic("fakeExecutor.QueryContext: not supported by this double")
}

func (e *fakeExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return fakeResult{}, nil
}

func (e *fakeExecutor) BeginScope(ctx context.Context) (pgstore.Scope, error) {
	e.scope = &fakeScope{}
	return e.scope, nil
}

func TestFakeExtensionRunQueryWrapperPassthroughWithoutHNSW(t *testing.T) {
	ext := NewFakeExtension(4)
	exec := &fakeExecutor{}
	called := false

	_, err := ext.RunQueryWrapper(context.Background(), exec, false, func(ctx context.Context, e pgstore.Executor) (any, error) {
		called = true
		if e != pgstore.Executor(exec) {
			t.Error("expected next to receive the original executor unchanged")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected next to be called")
	}
	if exec.scope != nil {
		t.Error("expected no nested scope to be opened when useHNSW is false")
	}
}

func TestFakeExtensionRunQueryWrapperOpensScopeWithHNSW(t *testing.T) {
	ext := NewFakeExtension(4)
	exec := &fakeExecutor{}

	var gotExec pgstore.Executor
	result, err := ext.RunQueryWrapper(context.Background(), exec, true, func(ctx context.Context, e pgstore.Executor) (any, error) {
		gotExec = e
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
	if exec.scope == nil {
		t.Fatal("expected a nested scope to be opened when useHNSW is true")
	}
	if gotExec != pgstore.Executor(exec.scope) {
		t.Error("expected next to receive the nested scope, not the original executor")
	}
	if len(exec.scope.execCalls) != 1 || exec.scope.execCalls[0] != ext.ScopeStatement {
		t.Errorf("execCalls = %v, want [%s]", exec.scope.execCalls, ext.ScopeStatement)
	}
	if !exec.scope.committed {
		t.Error("expected scope to be committed on success")
	}
}

func TestFakeExtensionRunQueryWrapperRollsBackOnNextError(t *testing.T) {
	ext := NewFakeExtension(4)
	exec := &fakeExecutor{}
	wantErr := errors.New("boom")

	_, err := ext.RunQueryWrapper(context.Background(), exec, true, func(ctx context.Context, e pgstore.Executor) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if exec.scope == nil || !exec.scope.rolledBack {
		t.Error("expected scope to be rolled back when next fails")
	}
	if exec.scope.committed {
		t.Error("expected scope not to be committed when next fails")
	}
}

func TestFakeExtensionDistanceExprAndLiteral(t *testing.T) {
	ext := NewFakeExtension(4)
	if got := ext.DistanceExpr("embedding", "$1"); got != "embedding <-> $1::float8[]" {
		t.Errorf("DistanceExpr() = %q", got)
	}
	if got := ext.InsertLiteral([]float32{0.1, 0.2}); got != "[0.1,0.2]" {
		t.Errorf("InsertLiteral() = %q", got)
	}
	if got := ext.ColumnType(); got != "DOUBLE PRECISION[]" {
		t.Errorf("ColumnType() = %q", got)
	}
}
