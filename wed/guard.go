package wed

import (
	hashset "github.com/hashicorp/go-set/v3"
)

// MaxGuardDependencies is the maximum number of clauses a guard may carry.
const MaxGuardDependencies = 256

// Guard is an ordered AND-conjunction of dependency clauses.
type Guard struct {
	Dependencies []Dependency
}

// NewGuard validates and builds a Guard from clauses.
func NewGuard(clauses []Dependency) (Guard, error) {
	if len(clauses) == 0 {
		return Guard{}, &SyntaxError{Reason: "a guard must have at least one dependency"}
	}
	if len(clauses) > MaxGuardDependencies {
		return Guard{}, &SyntaxError{Reason: "a guard may not have more than 256 dependencies"}
	}
	return Guard{Dependencies: clauses}, nil
}

// OnVariables returns the set of variables this guard's clauses constrain.
func (g Guard) OnVariables() *hashset.Set[Variable] {
	s := hashset.New[Variable](len(g.Dependencies))
	for _, d := range g.Dependencies {
		s.Insert(d.OnVariable())
	}
	return s
}

// Namespaces returns the set of namespaces of g.OnVariables().
func (g Guard) Namespaces() *hashset.Set[string] {
	s := hashset.New[string](len(g.Dependencies))
	for _, d := range g.Dependencies {
		s.Insert(d.OnVariable().Namespace())
	}
	return s
}

// Satisfies evaluates g against a snapshot: the conjunction of each clause's
// Satisfied result, reading unset variables as the empty string. Pure and
// allocation-light, per spec.md §4.3.
func (g Guard) Satisfies(snapshot map[string]string) bool {
	for _, d := range g.Dependencies {
		value := snapshot[d.OnVariable().ID]
		if !d.Satisfied(value) {
			return false
		}
	}
	return true
}

// FirstUnsatisfied returns the first clause in g that the snapshot does not
// satisfy and true, or false if every clause holds; its Render form is used
// to report UnsatisfiedInitialGuard precisely.
func (g Guard) FirstUnsatisfied(snapshot map[string]string) (Dependency, bool) {
	for _, d := range g.Dependencies {
		value := snapshot[d.OnVariable().ID]
		if !d.Satisfied(value) {
			return d, true
		}
	}
	return Dependency{}, false
}
