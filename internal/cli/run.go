package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/gudam/internal/harness"
	"github.com/roach88/gudam/internal/value"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	BackendOptions
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string                  `json:"scenario"`
	Pass     bool                    `json:"pass"`
	Errors   []string                `json:"errors,omitempty"`
	Trace    []harness.TraceEvent    `json:"trace"`
	State    map[string]value.Record `json:"state"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its trace",
		Long: `Run a store scenario and print the resulting trace and final state.

By default the scenario runs against a throwaway in-memory database. With
--db or --storage it runs against a durable backend instead, so state
persisted by one run is restored by the next.

Example:
  gudam run ./scenarios/counter_burst.yaml
  gudam run --db ./gudam.db ./scenarios/counter_burst.yaml
  gudam run --storage ./prefs.toml ./scenarios/prefs.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.TOMLFile, "storage", "", "path to TOML storage file")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if err := opts.BackendOptions.validate(); err != nil {
		return err
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	var runOpts harness.Options
	if opts.BackendOptions.isSet() {
		be, err := opts.BackendOptions.open()
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := be.close(); closeErr != nil {
				slog.Error("error closing storage", "error", closeErr)
			}
		}()
		runOpts.Storage = be
		formatter.VerboseLog("Using storage %s", be.name)
	}

	slog.Debug("running scenario", "scenario", scenario.Name, "path", path)
	result, err := harness.RunWithOptions(scenario, runOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario could not run", err)
	}

	if opts.Format == "json" {
		data := RunResult{
			Scenario: scenario.Name,
			Pass:     result.Pass,
			Errors:   result.Errors,
			Trace:    result.Trace,
			State:    result.State,
		}
		failure := CLIError{
			Code:    ErrCodeScenarioFailed,
			Message: fmt.Sprintf("scenario %s failed", scenario.Name),
		}
		if err := formatter.Report(result.Pass, lastSessionID(result), data, failure); err != nil {
			return err
		}
	} else {
		writeRunText(formatter.Writer, scenario.Name, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func writeRunText(w io.Writer, name string, result *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s\n\n", name)

	fmt.Fprintln(w, "Trace:")
	for _, ev := range result.Trace {
		fmt.Fprintf(w, "  [%d] %s\n", ev.Seq, describeTraceEvent(ev))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "State:")
	for _, key := range sortedStateKeys(result.State) {
		data, err := value.MarshalCanonical(result.State[key])
		if err != nil {
			fmt.Fprintf(w, "  %s: <%v>\n", key, err)
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", key, data)
	}
	fmt.Fprintln(w)

	if result.Pass {
		fmt.Fprintln(w, "✓ Scenario passed")
		return
	}
	fmt.Fprintln(w, "✗ Scenario failed")
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func describeTraceEvent(ev harness.TraceEvent) string {
	switch ev.Type {
	case harness.EventSession:
		return "session " + ev.Session
	case harness.EventStep:
		return "step " + ev.Step
	case harness.EventNotify:
		return fmt.Sprintf("notify %s (token %d)", ev.Store, ev.Token)
	case harness.EventWrite:
		return fmt.Sprintf("write %s = %s", ev.Key, ev.Value)
	case harness.EventPreload:
		return fmt.Sprintf("preload %s (applied: %t)", ev.Store, ev.Applied)
	default:
		return ev.Type
	}
}

// lastSessionID returns the ID of the session the scenario ended in.
func lastSessionID(result *harness.Result) string {
	for i := len(result.Trace) - 1; i >= 0; i-- {
		if ev := result.Trace[i]; ev.Type == harness.EventSession {
			return ev.Session
		}
	}
	return ""
}
