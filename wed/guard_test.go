package wed

import (
	"testing"

	"github.com/shoenig/test/must"
)

func mustClause(t *testing.T, s string) Dependency {
	t.Helper()
	d, err := ParseClause(s)
	must.NoError(t, err)
	return d
}

func TestGuardSatisfiesConjunction(t *testing.T) {
	g, err := NewGuard([]Dependency{
		mustClause(t, `$P = "ready"`),
		mustClause(t, `$Q != "blocked"`),
	})
	must.NoError(t, err)

	must.True(t, g.Satisfies(map[string]string{"P": "ready", "Q": "go"}))
	must.False(t, g.Satisfies(map[string]string{"P": "ready", "Q": "blocked"}))
	must.False(t, g.Satisfies(map[string]string{"P": "", "Q": "go"}))
}

func TestGuardFirstUnsatisfied(t *testing.T) {
	g, err := NewGuard([]Dependency{
		mustClause(t, `$P = "ready"`),
		mustClause(t, `$Q = "go"`),
	})
	must.NoError(t, err)

	_, ok := g.FirstUnsatisfied(map[string]string{"P": "ready", "Q": "go"})
	must.False(t, ok)

	d, ok := g.FirstUnsatisfied(map[string]string{"P": "notready", "Q": "go"})
	must.True(t, ok)
	must.Eq(t, "P", d.On.ID)
}

func TestNewGuardRejectsEmpty(t *testing.T) {
	_, err := NewGuard(nil)
	must.Error(t, err)
}

func TestGuardOnVariables(t *testing.T) {
	g, err := NewGuard([]Dependency{
		mustClause(t, `$A = "1"`),
		mustClause(t, `$B = "2"`),
	})
	must.NoError(t, err)

	vars := g.OnVariables()
	must.Eq(t, 2, vars.Size())
	must.True(t, vars.Contains(Variable{ID: "A"}))
	must.True(t, vars.Contains(Variable{ID: "B"}))
}
