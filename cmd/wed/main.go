// Command wed drives declarative, guard-gated experiment workflows to
// completion.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/cli"
	colorable "github.com/mattn/go-colorable"

	"github.com/wedrun/wed/command"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ui := &cli.ColoredUi{
		Ui: &cli.BasicUi{
			Writer:      colorable.NewColorableStdout(),
			ErrorWriter: colorable.NewColorableStderr(),
		},
	}

	c := cli.NewCLI("wed", version)
	c.Args = args
	c.Commands = map[string]cli.CommandFactory{
		"run": func() (cli.Command, error) {
			return &command.RunCommand{Meta: command.Meta{Ui: ui}}, nil
		},
	}

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return exitCode
}

// version is the CLI's self-reported version string.
const version = "0.1.0"
