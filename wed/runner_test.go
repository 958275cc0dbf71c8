package wed

import (
	"context"
	"errors"
	"testing"

	"github.com/shoenig/test/must"
)

func mustGuard(t *testing.T, clauses ...string) Guard {
	t.Helper()
	deps := make([]Dependency, 0, len(clauses))
	for _, c := range clauses {
		deps = append(deps, mustClause(t, c))
	}
	g, err := NewGuard(deps)
	must.NoError(t, err)
	return g
}

func TestRunnerRunSuccess(t *testing.T) {
	exec := newScriptedExecutor()
	mk := marker("set-s")
	exec.onTriples(mk, [3]string{"S", "mid", "ro"})

	guard := mustGuard(t, `$S = ""`)
	task, err := NewTask("A", guard, mk+"\nS=mid\n")
	must.NoError(t, err)

	runner := NewRunner(exec)
	bindings := map[string]VarBinding{"S": {Value: "", Permission: ReadWrite}}

	delta, err := runner.Run(context.Background(), task, bindings, nil, nil)
	must.NoError(t, err)
	must.Eq(t, 1, len(delta))
	must.Eq(t, "mid", delta["S"].value)
	must.Eq(t, ReadOnly, delta["S"].permission)
}

// TestRunnerUndeclaredDependency is scenario 5 of spec.md §8: a task that
// mutates a variable outside its guard's on_variables set must fail with
// UndeclaredDependency, and the scheduler must never merge the delta.
func TestRunnerUndeclaredDependency(t *testing.T) {
	exec := newScriptedExecutor()
	mk := marker("undeclared")
	exec.onTriples(mk, [3]string{"T", "surprise", "rw"})

	guard := mustGuard(t, `$B = ""`)
	task, err := NewTask("T", guard, mk+"\n")
	must.NoError(t, err)

	runner := NewRunner(exec)
	bindings := map[string]VarBinding{"B": {Value: "", Permission: ReadWrite}}

	_, err = runner.Run(context.Background(), task, bindings, nil, nil)
	must.Error(t, err)

	var undeclared *UndeclaredDependency
	must.True(t, errors.As(err, &undeclared))
	must.Eq(t, "T", undeclared.Variable)
	must.Eq(t, "T", undeclared.Task)
}

func TestRunnerExecutorFailure(t *testing.T) {
	exec := newScriptedExecutor()
	mk := marker("boom")
	exec.on(mk, func(args []string) ([]byte, error) {
		return nil, context.DeadlineExceeded
	})

	guard := mustGuard(t, `$B = ""`)
	task, err := NewTask("T", guard, mk+"\n")
	must.NoError(t, err)

	runner := NewRunner(exec)
	_, err = runner.Run(context.Background(), task, map[string]VarBinding{}, nil, nil)
	must.Error(t, err)

	var taskErr *TaskExecutionError
	must.True(t, errors.As(err, &taskErr))
}
