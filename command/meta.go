// Package command implements wed's command-line front end: a single `run`
// subcommand, in the teacher's Meta-embedding command-object style (every
// Nomad subcommand embeds a shared Meta{Ui} and implements Help/Synopsis/
// Run).
package command

import (
	"flag"

	"github.com/hashicorp/cli"
	"github.com/posener/complete"
)

// Meta holds the state shared by every wed subcommand.
type Meta struct {
	Ui cli.Ui
}

// FlagSet returns a flag.FlagSet that returns parse errors instead of
// exiting and whose Usage function prints nothing; the flags are documented
// by the command's Help output.
func (m *Meta) FlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {}
	return fs
}

// AutocompleteFlags is embedded by subcommands that have nothing beyond the
// flags they register themselves to offer the shell completer.
func (m *Meta) AutocompleteFlags() complete.Flags { return complete.Flags{} }

// AutocompleteArgs is embedded by subcommands whose positional arguments are
// file paths (the spec and config files), which is all of them today.
func (m *Meta) AutocompleteArgs() complete.Predictor { return complete.PredictFiles("*") }
