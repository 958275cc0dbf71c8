package wed

import (
	"context"
	"fmt"
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// Instantiate builds the initial State of an experiment instance: it runs
// configPath through shell with an empty setup (per spec.md §6), parses its
// output as capture triples, and seeds a new State whose lock-table keys
// are exactly exp.Variables(). The config script is exempt from the
// UndeclaredDependency check task bodies are subject to: every triple it
// emits is accepted, since it has no declared on_variables to violate.
//
// If the resulting state does not satisfy exp.InitialGuard, instantiation
// fails with UnsatisfiedInitialGuard naming the first unsatisfied clause.
func Instantiate(ctx context.Context, exp *Experiment, configPath string, shell ShellExecutor, logger hclog.Logger) (*State, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	source, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("wed: reading configuration file %s: %w", configPath, err)
	}

	script := RenderCaptureScript(string(source))
	out, err := shell.Execute(ctx, script, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("wed: running configuration script: %w", err)
	}

	delta, err := ParseCaptureOutput(out)
	if err != nil {
		return nil, fmt.Errorf("wed: parsing configuration output: %w", err)
	}

	state := NewState(exp.Variables())
	if err := state.Merge(delta, ""); err != nil {
		return nil, err
	}

	snap := state.Snapshot()
	if dep, unsatisfied := exp.InitialGuard.FirstUnsatisfied(snap); unsatisfied {
		logger.Warn("initial guard not satisfied", "clause", dep.Render())
		return nil, &UnsatisfiedInitialGuard{Clause: dep.Render()}
	}

	logger.Info("experiment instance initialised", "variables", len(exp.Variables().Slice()))
	return state, nil
}
