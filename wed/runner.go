package wed

import (
	"context"
	"io"
	"time"

	metrics "github.com/armon/go-metrics"
	hashset "github.com/hashicorp/go-set/v3"
)

// Runner prepares arguments, invokes the shell executor, parses its output
// into a delta, and validates that every mutated variable was declared as a
// dependency. It never touches State directly; the scheduler merges the
// delta it returns.
type Runner struct {
	Shell ShellExecutor
}

// NewRunner builds a Runner over the given shell executor.
func NewRunner(shell ShellExecutor) *Runner {
	return &Runner{Shell: shell}
}

// Run executes task against the given bindings (already snapshotted by the
// caller under the held locks) and returns the resulting delta. stdoutLog
// and stderrLog, when non-nil, receive a copy of the child shell's output
// for the worker log files of spec.md §6.
func (r *Runner) Run(ctx context.Context, task Task, bindings map[string]VarBinding, stdoutLog, stderrLog io.Writer) (Delta, error) {
	start := time.Now()

	vars := sortedVars(task.OnVariables().Slice())
	arg := EncodeArgument(vars, bindings)
	script := RenderCaptureScript(task.Body)

	out, err := r.Shell.Execute(ctx, script, []string{arg}, stdoutLog, stderrLog)
	if err != nil {
		metrics.IncrCounter([]string{"wed", "task", "error"}, 1)
		return nil, &TaskExecutionError{Task: task.Name, Err: err}
	}

	delta, err := ParseCaptureOutput(out)
	if err != nil {
		metrics.IncrCounter([]string{"wed", "task", "error"}, 1)
		return nil, &TaskExecutionError{Task: task.Name, Err: err}
	}

	if err := validateDeclared(delta, task); err != nil {
		return nil, err
	}

	metrics.IncrCounter([]string{"wed", "task", "success"}, 1)
	metrics.MeasureSince([]string{"wed", "task", "duration"}, start)
	return delta, nil
}

// validateDeclared enforces spec.md §4.4 step 4: every variable named in
// delta must be a member of task's on_variables set.
func validateDeclared(delta Delta, task Task) error {
	on := task.OnVariables()
	for id := range delta {
		if !containsVar(on, id) {
			return &UndeclaredDependency{Variable: id, Task: task.Name}
		}
	}
	return nil
}

func containsVar(s *hashset.Set[Variable], id string) bool {
	for _, v := range s.Slice() {
		if v.ID == id {
			return true
		}
	}
	return false
}
