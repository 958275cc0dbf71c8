package wed

import (
	hashset "github.com/hashicorp/go-set/v3"
)

// Task is a guarded unit of shell work that may update the variables in its
// guard's on_variables set.
type Task struct {
	Name  string
	Guard Guard
	Body  string
}

// NewTask validates name and builds a Task.
func NewTask(name string, guard Guard, body string) (Task, error) {
	if !ValidIdentifier(name) {
		return Task{}, &SyntaxError{Reason: "invalid task name " + quote(name)}
	}
	return Task{Name: name, Guard: guard, Body: body}, nil
}

// OnVariables returns Name's guard's on_variables set.
func (t Task) OnVariables() *hashset.Set[Variable] { return t.Guard.OnVariables() }

func quote(s string) string { return "\"" + s + "\"" }
