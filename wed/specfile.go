package wed

import (
	"bytes"
	"fmt"
	"os"

	multierror "github.com/hashicorp/go-multierror"
	yaml "gopkg.in/yaml.v3"
)

// specfileDocument mirrors the top-level YAML mapping of spec.md §6:
// {initial_guard, final_guard, tasks: [{name, guard, bash}]}. Guard fields
// are decoded as `any` because each may be a scalar clause or a list of
// clauses; normalizeClauses resolves that ambiguity, following the scalar-
// or-list handling of original_source/src/wedmakefile_parser.py.
type specfileDocument struct {
	InitialGuard any               `yaml:"initial_guard"`
	FinalGuard   any               `yaml:"final_guard"`
	Tasks        []taskfileDocument `yaml:"tasks"`
}

type taskfileDocument struct {
	Name  string `yaml:"name"`
	Guard any    `yaml:"guard"`
	Bash  string `yaml:"bash"`
}

// LoadExperiment reads a specification YAML document from path and parses
// it into an Experiment.
func LoadExperiment(path string) (*Experiment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wed: reading specification file %s: %w", path, err)
	}
	return ParseExperiment(raw)
}

// ParseExperiment parses a YAML specification document into an Experiment.
// Unknown top-level keys are rejected. Every guard and task in the document
// is validated before returning, rather than stopping at the first bad
// guard or task: the errors collected along the way are aggregated with
// go-multierror (the same way the teacher aggregates per-field validation
// failures for jobs and configuration) so an operator sees the mistakes of
// every guard and task in one pass. Within one guard, only the first bad
// clause is reported.
func ParseExperiment(doc []byte) (*Experiment, error) {
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(true)

	var sf specfileDocument
	if err := dec.Decode(&sf); err != nil {
		return nil, &SyntaxError{Reason: fmt.Sprintf("invalid specification document: %v", err)}
	}

	var result *multierror.Error

	initialGuard, err := parseNamedGuard("initial_guard", sf.InitialGuard)
	if err != nil {
		result = multierror.Append(result, err)
	}
	finalGuard, err := parseNamedGuard("final_guard", sf.FinalGuard)
	if err != nil {
		result = multierror.Append(result, err)
	}

	tasks := make([]Task, 0, len(sf.Tasks))
	for _, td := range sf.Tasks {
		guard, err := parseNamedGuard(fmt.Sprintf("task %q guard", td.Name), td.Guard)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		task, err := NewTask(td.Name, guard, td.Bash)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		tasks = append(tasks, task)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	exp, err := NewExperiment(initialGuard, finalGuard, tasks)
	if err != nil {
		return nil, multierror.Append(result, err).ErrorOrNil()
	}
	return exp, nil
}

// parseNamedGuard normalizes and parses one guard field, wrapping any error
// with which field it came from so aggregated multierror output stays
// legible.
func parseNamedGuard(field string, raw any) (Guard, error) {
	clauses, err := normalizeClauses(raw)
	if err != nil {
		return Guard{}, fmt.Errorf("%s: %w", field, err)
	}
	guard, err := buildGuard(clauses)
	if err != nil {
		return Guard{}, fmt.Errorf("%s: %w", field, err)
	}
	return guard, nil
}

// normalizeClauses accepts a single clause string or a list of clause
// strings and returns the list, per spec.md §4.1's "a scalar clause is
// normalised to a single-element list".
func normalizeClauses(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, &SyntaxError{Reason: "missing guard"}
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, &SyntaxError{Reason: fmt.Sprintf("guard list element %v is not a string", item)}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &SyntaxError{Reason: fmt.Sprintf("guard must be a string or list of strings, got %T", v)}
	}
}

func buildGuard(clauses []string) (Guard, error) {
	deps := make([]Dependency, 0, len(clauses))
	for _, c := range clauses {
		d, err := ParseClause(c)
		if err != nil {
			return Guard{}, err
		}
		deps = append(deps, d)
	}
	return NewGuard(deps)
}
