package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/hashicorp/cli"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/ryanuber/columnize"

	"github.com/wedrun/wed/wed"
)

// RunCommand implements `wed run <spec> <config>`, the only subcommand this
// tool exposes.
type RunCommand struct {
	Meta
}

// Help implements cli.Command.
func (c *RunCommand) Help() string {
	return `Usage: wed run [options] <spec.yaml> <config.sh>

  Drives an experiment instance, defined by <spec.yaml>, whose initial state
  is the environment produced by <config.sh>, to completion.

General Options:

  -workers=N       Number of concurrent workers (default 4).
  -verbose         Log at debug level and print a metrics summary on exit.
  -quiet           Log only warnings and errors.
  -log-dir=DIR     Write <task>_<ts>.out/.err files under DIR for every
                   task execution.
`
}

// Synopsis implements cli.Command.
func (c *RunCommand) Synopsis() string {
	return "Drive an experiment instance to completion"
}

// Run implements cli.Command.
func (c *RunCommand) Run(args []string) int {
	var workers int
	var verbose, quiet bool
	var logDir string

	fs := c.FlagSet("run")
	fs.IntVar(&workers, "workers", 4, "number of concurrent workers")
	fs.BoolVar(&verbose, "verbose", false, "debug-level logging and exit metrics")
	fs.BoolVar(&quiet, "quiet", false, "warnings and errors only")
	fs.StringVar(&logDir, "log-dir", "", "directory for per-task log files")
	if err := fs.Parse(args); err != nil {
		c.Ui.Error(fmt.Sprintf("Error parsing flags: %v", err))
		return 2
	}

	rest := fs.Args()
	if len(rest) != 2 {
		c.Ui.Error("This command takes two arguments: <spec.yaml> <config.sh>")
		c.Ui.Error(c.Help())
		return 2
	}
	specPath, configPath := rest[0], rest[1]

	level := hclog.Info
	switch {
	case verbose:
		level = hclog.Debug
	case quiet:
		level = hclog.Warn
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "wed",
		Level: level,
	})

	sink := metrics.NewInmemSink(10*time.Second, time.Minute)
	if _, err := metrics.NewGlobal(metrics.DefaultConfig("wed"), sink); err != nil {
		logger.Warn("failed to install metrics sink", "error", err)
	}

	exp, err := wed.LoadExperiment(specPath)
	if err != nil {
		c.Ui.Error(color.RedString("Error loading specification: %v", err))
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	shell := wed.OSShellExecutor{}
	state, err := wed.Instantiate(ctx, exp, configPath, shell, logger)
	if err != nil {
		c.Ui.Error(color.RedString("Error instantiating experiment: %v", err))
		return 1
	}

	var taskLogger *wed.TaskLogger
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			c.Ui.Error(fmt.Sprintf("Error creating log directory %s: %v", logDir, err))
			return 2
		}
		taskLogger = wed.NewTaskLogger(logDir)
	}

	runner := wed.NewRunner(shell)
	sched := wed.NewScheduler(exp, state, runner, logger, taskLogger, workers)

	start := time.Now()
	status, runErr := sched.Run(ctx)
	elapsed := time.Since(start)

	c.Ui.Output(fmt.Sprintf("experiment %s after %s (%d workers)", status, humanize.RelTime(start, start.Add(elapsed), "", ""), workers))

	if verbose {
		c.printMetrics(sink)
	}

	switch status {
	case wed.Final:
		return 0
	default:
		c.Ui.Error(color.RedString("Error: %v", runErr))
		return 1
	}
}

func (c *RunCommand) printMetrics(sink *metrics.InmemSink) {
	data := sink.Data()
	var rows []string
	rows = append(rows, "Metric | Count | Sum")
	for _, interval := range data {
		interval.RLock()
		for name, v := range interval.Counters {
			rows = append(rows, fmt.Sprintf("%s | %s | %s", name, strconv.Itoa(v.Count), strconv.FormatFloat(v.Sum, 'f', 2, 64)))
		}
		interval.RUnlock()
	}
	c.Ui.Output(columnize.SimpleFormat(rows))
}

var _ cli.Command = (*RunCommand)(nil)
