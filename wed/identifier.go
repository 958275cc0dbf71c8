// Package wed implements the guard-driven experiment scheduler: a small DSL
// for describing variables and shell tasks, a locked shared state store, and
// the concurrent worker pool that drives an experiment instance to
// completion.
package wed

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxValueLength is the maximum length, in bytes, of a variable value.
const MaxValueLength = 2048

var identifierPattern = regexp.MustCompile(`^[A-Za-z]([_A-Za-z0-9]{0,62}[A-Za-z0-9])?$`)

// ValidIdentifier reports whether id is a legal variable or task identifier.
func ValidIdentifier(id string) bool {
	return identifierPattern.MatchString(id)
}

// ValidValue reports whether v is a legal variable value: at most
// MaxValueLength bytes, free of newlines, and free of the 0x1e/0x1f bytes the
// capture wire format reserves as its own escape marker and field separator
// (see EncodeArgument/ParseCaptureOutput in executor.go) — a value containing
// either byte would otherwise silently desynchronize the decoded triples
// instead of being rejected.
func ValidValue(v string) bool {
	if len(v) > MaxValueLength {
		return false
	}
	return !strings.ContainsAny(v, "\n\x1e\x1f")
}

// Namespace returns the namespace of identifier id: the prefix up to (but
// excluding) its last underscore, or the empty string if id has none.
func Namespace(id string) string {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		return id[:i]
	}
	return ""
}

// Permission tags a variable binding as read-write or read-only.
type Permission int

const (
	// ReadWrite is the default permission: the binding may be overwritten.
	ReadWrite Permission = iota
	// ReadOnly marks a binding that may never be overwritten again.
	ReadOnly
)

// String implements fmt.Stringer.
func (p Permission) String() string {
	switch p {
	case ReadWrite:
		return "rw"
	case ReadOnly:
		return "ro"
	default:
		return "unknown"
	}
}

// ParsePermission parses the wire tokens "rw"/"ro" used by the capture
// protocol and configuration scripts.
func ParsePermission(s string) (Permission, error) {
	switch s {
	case "rw":
		return ReadWrite, nil
	case "ro":
		return ReadOnly, nil
	default:
		return 0, fmt.Errorf("wed: invalid permission %q, want \"rw\" or \"ro\"", s)
	}
}

// Variable identifies a slot in an experiment's state.
type Variable struct {
	ID string
}

// NewVariable validates id and returns a Variable.
func NewVariable(id string) (Variable, error) {
	if !ValidIdentifier(id) {
		return Variable{}, &SyntaxError{Reason: fmt.Sprintf("invalid variable identifier %q", id)}
	}
	return Variable{ID: id}, nil
}

// Namespace returns the namespace of v's identifier.
func (v Variable) Namespace() string { return Namespace(v.ID) }

// Equal reports whether v and o name the same identifier.
func (v Variable) Equal(o Variable) bool { return v.ID == o.ID }

// Less orders variables lexicographically on identifier, the total order the
// state store's lock-acquisition protocol relies on.
func (v Variable) Less(o Variable) bool { return v.ID < o.ID }

// String implements fmt.Stringer.
func (v Variable) String() string { return v.ID }
