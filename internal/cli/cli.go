package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/pipegrid/internal/app"
	"github.com/specialistvlad/pipegrid/internal/parameters"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// repeated collects every occurrence of a repeatable flag.
type repeated []string

func (r *repeated) String() string { return strings.Join(*r, ", ") }

func (r *repeated) Set(v string) error {
	*r = append(*r, v)
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("pipegrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
pipegrid - A declarative task pipeline runner with resumable runs.

Usage:
  pipegrid [options] [PIPELINE_PATH]

Arguments:
  PIPELINE_PATH
    Path to a .yml, .yaml or .hcl pipeline document.

Options:
`)
		flagSet.PrintDefaults()
	}

	var overrides repeated
	pathFlag := flagSet.String("pipeline-path", "", "Path to the pipeline document.")
	flagSet.Var(&overrides, "p", "Parameter override as key=value. Repeatable.")
	paramsFlag := flagSet.String("parameters", "", "Space-separated key=value parameter overrides.")
	continueFlag := flagSet.Bool("continue-from-last-run", true, "Resume the latest unfinished run of the pipeline.")
	skipFlag := flagSet.Bool("skip-completed", false, "When resuming, skip tasks already recorded as completed.")
	debugFlag := flagSet.Bool("debug", false, "Shorthand for -log-level debug.")
	storeFlag := flagSet.String("checkpoint-store", app.StoreFile, "Checkpoint backend. Options: "+strings.Join(app.StoreKinds, ", ")+".")
	workspaceFlag := flagSet.String("workspace", "", "Workspace directory. Defaults to $PIPEGRID_WORKSPACE or ~/.pipegrid.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := *pathFlag
	if path == "" && flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Pipeline path determined.", "path", path)

	if path == "" {
		slog.Debug("No pipeline path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if *debugFlag {
		logLevel = "debug"
	}

	pairs := append(strings.Fields(*paramsFlag), overrides...)
	values, err := parameters.ParseOverrides(pairs)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		PipelinePath:        path,
		Overrides:           values,
		ContinueFromLastRun: *continueFlag,
		SkipCompleted:       *skipFlag,
		CheckpointStore:     strings.ToLower(*storeFlag),
		WorkspaceRoot:       *workspaceFlag,
		LogFormat:           logFormat,
		LogLevel:            logLevel,
		HealthcheckPort:     *healthPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
