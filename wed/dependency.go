package wed

import (
	"fmt"
	"strings"
)

// ClauseKind tags which of the four dependency forms a Dependency holds.
type ClauseKind int

const (
	// Equality is `$V = "literal"`.
	Equality ClauseKind = iota
	// Inequality is `$V != "literal"`.
	Inequality
	// Membership is `$V in [l1, l2, ...]`.
	Membership
	// NoMembership is `$V not in [l1, l2, ...]`.
	NoMembership
)

// String implements fmt.Stringer.
func (k ClauseKind) String() string {
	switch k {
	case Equality:
		return "="
	case Inequality:
		return "!="
	case Membership:
		return "in"
	case NoMembership:
		return "not in"
	default:
		return "?"
	}
}

// Dependency is a single-variable predicate clause, one of the four forms
// described in spec.md §3. Equality/Inequality carry Literal; Membership/
// NoMembership carry Literals, parsed once at construction time.
type Dependency struct {
	Kind     ClauseKind
	On       Variable
	Literal  string
	Literals []string
}

// OnVariable returns the single variable this clause constrains.
func (d Dependency) OnVariable() Variable { return d.On }

// Satisfied reports whether d holds given the value bound to d.On (the empty
// string if unset, per spec.md §3).
func (d Dependency) Satisfied(value string) bool {
	switch d.Kind {
	case Equality:
		return value == d.Literal
	case Inequality:
		return value != d.Literal
	case Membership:
		return containsString(d.Literals, value)
	case NoMembership:
		return !containsString(d.Literals, value)
	default:
		return false
	}
}

func containsString(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

// Render re-renders d in its canonical clause form, used both for error
// messages and the round-trip property (spec.md P7).
func (d Dependency) Render() string {
	switch d.Kind {
	case Equality:
		return fmt.Sprintf("$%s = %s", d.On.ID, quoteLiteral(d.Literal))
	case Inequality:
		return fmt.Sprintf("$%s != %s", d.On.ID, quoteLiteral(d.Literal))
	case Membership, NoMembership:
		quoted := make([]string, len(d.Literals))
		for i, l := range d.Literals {
			quoted[i] = quoteLiteral(l)
		}
		verb := "in"
		if d.Kind == NoMembership {
			verb = "not in"
		}
		return fmt.Sprintf("$%s %s [%s]", d.On.ID, verb, strings.Join(quoted, ", "))
	default:
		return "<invalid clause>"
	}
}

// quoteLiteral wraps l in double quotes, or in single quotes when l contains
// a double quote. The clause grammar has no escapes, and a parsed literal
// never holds both quote characters.
func quoteLiteral(l string) string {
	if strings.Contains(l, `"`) {
		return "'" + l + "'"
	}
	return `"` + l + `"`
}

// ParseClause parses a single clause string in one of the four forms
// described in spec.md §3/§6 (the forms are mutually exclusive, so the
// order in which the parser tries them does not change the result),
// returning a SyntaxError naming the offending clause on mismatch.
func ParseClause(s string) (Dependency, error) {
	p := &clauseParser{src: strings.TrimSpace(s)}
	dep, err := p.parse()
	if err != nil {
		return Dependency{}, &SyntaxError{Reason: fmt.Sprintf("invalid clause %q: %v", s, err)}
	}
	return dep, nil
}
