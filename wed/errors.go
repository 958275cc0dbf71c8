package wed

import "fmt"

// SyntaxError reports a malformed specification: an invalid identifier,
// value, clause, or a guard with more than 256 dependencies.
type SyntaxError struct {
	Reason string
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("wed: syntax error: %s", e.Reason) }

// UnsatisfiedInitialGuard reports that the config-derived state did not
// satisfy the experiment's initial guard at instantiation time.
type UnsatisfiedInitialGuard struct {
	Clause string
}

func (e *UnsatisfiedInitialGuard) Error() string {
	return fmt.Sprintf("wed: unsatisfied initial guard clause: %s", e.Clause)
}

// TaskExecutionError reports that the shell executor failed to run a task's
// body or returned output that could not be parsed as capture triples.
type TaskExecutionError struct {
	Task string
	Err  error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("wed: task %q failed: %v", e.Task, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }

// UndeclaredDependency reports that a task mutated a variable outside its
// guard's on_variables set.
type UndeclaredDependency struct {
	Variable string
	Task     string
}

func (e *UndeclaredDependency) Error() string {
	return fmt.Sprintf("wed: task %q wrote undeclared variable %q", e.Task, e.Variable)
}

// PermissionViolation reports a merge attempting to overwrite a read-only
// binding.
type PermissionViolation struct {
	Variable string
	Task     string
}

func (e *PermissionViolation) Error() string {
	return fmt.Sprintf("wed: task %q attempted to overwrite read-only variable %q", e.Task, e.Variable)
}

// InconsistentState reports that the scheduler observed a non-final state in
// which no task's guard is satisfied: the experiment is stuck.
type InconsistentState struct {
	Experiment string
}

func (e *InconsistentState) Error() string {
	return fmt.Sprintf("wed: experiment %q reached an inconsistent state", e.Experiment)
}
