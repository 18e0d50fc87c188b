package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/qsubgo/internal/app"
)

// ExitError is an error that carries the process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

const usage = `
qsubgo - run workflow targets as Sun/Open Grid Engine jobs.

Usage:
  qsubgo [options] <command> [TARGET...]

Commands:
  submit   Submit targets and everything they depend on.
  status   Show the status of targets.
  cancel   Cancel targets (all tracked targets when none are named).
  forget   Drop the tracked job of targets without cancelling them.
  serve    Serve target status over HTTP.

Options:
`

// Parse processes command-line arguments. It returns the app configuration,
// whether the program should exit cleanly (for -h), or an *ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("qsubgo", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usage)
		flagSet.PrintDefaults()
	}

	workflowFlag := flagSet.String("workflow", "workflow.hcl", "Path to the workflow file or directory.")
	fFlag := flagSet.String("f", "", "Path to the workflow file or directory (shorthand).")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	formatFlag := flagSet.String("format", "table", "Status output format. Options: 'table', 'json' or 'yaml'.")
	portFlag := flagSet.Int("port", 8080, "Port for the status server started by 'serve'.")
	yesFlag := flagSet.Bool("yes", false, "Do not ask for confirmation before cancelling all targets.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, true, nil
	}
	command := strings.ToLower(flagSet.Arg(0))
	targets := flagSet.Args()[1:]

	path := *workflowFlag
	if *fFlag != "" {
		path = *fFlag
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg, err := app.NewConfig(app.Config{
		WorkflowPath: path,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		OutputFormat: strings.ToLower(*formatFlag),
		Port:         *portFlag,
		AssumeYes:    *yesFlag,
		Command:      command,
		Targets:      targets,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "command", cfg.Command, "targets", cfg.Targets)
	return cfg, false, nil
}
