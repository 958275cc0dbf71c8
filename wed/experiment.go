package wed

import (
	"fmt"

	hashset "github.com/hashicorp/go-set/v3"
)

// Experiment is an immutable specification: an initial guard, a final guard,
// and the set of guarded tasks that may fire between them. It is created
// once by the parser and safely shared across every worker of every
// instance built from it.
type Experiment struct {
	InitialGuard Guard
	FinalGuard   Guard
	Tasks        []Task
}

// NewExperiment validates and builds an Experiment. Task names must be
// unique; this is not stated explicitly by spec.md but is implied by
// "ready_tasks" identifying tasks by name for logging and by the CLI's
// <task>_<ts> log file naming scheme needing a unique key.
func NewExperiment(initial, final Guard, tasks []Task) (*Experiment, error) {
	seen := hashset.New[string](len(tasks))
	for _, t := range tasks {
		if !seen.Insert(t.Name) {
			return nil, &SyntaxError{Reason: fmt.Sprintf("duplicate task name %q", t.Name)}
		}
	}
	return &Experiment{InitialGuard: initial, FinalGuard: final, Tasks: tasks}, nil
}

// Variables returns the union of variables appearing in the initial guard,
// the final guard, and every task's guard.
func (e *Experiment) Variables() *hashset.Set[Variable] {
	s := e.InitialGuard.OnVariables().Union(e.FinalGuard.OnVariables())
	for _, t := range e.Tasks {
		s = s.Union(t.OnVariables())
	}
	return s
}

// Namespaces returns the set of namespaces of e.Variables().
func (e *Experiment) Namespaces() *hashset.Set[string] {
	s := hashset.New[string](0)
	for _, v := range e.Variables().Slice() {
		s.Insert(v.Namespace())
	}
	return s
}

// Task looks up a task by name.
func (e *Experiment) Task(name string) (Task, bool) {
	for _, t := range e.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return Task{}, false
}
