package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/knit/internal/harness"
	"github.com/roach88/knit/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// IDGenerator overrides run IDs in the database (for testing).
	IDGenerator func() string
}

// RunReport is the JSON result of one scenario run.
type RunReport struct {
	RunID  string          `json:"run_id,omitempty"`
	Result *harness.Result `json:"result"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file>...",
		Short: "Run scenarios and print their traces",
		Long: `Run one or more scenario files (.yaml, .yml or .cue) and print each
trace. With --db the traces are also stored in a SQLite database, where
"knit trace" can read them back.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (unreadable file, invalid scenario, database error)

Examples:
  knit run ./scenarios/context_order.yaml
  knit run --db ./knit.db ./scenarios/*.yaml
  knit run --format json ./scenarios/null_propagation.cue`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "store traces in this SQLite database")

	return cmd
}

func runScenarios(opts *RunOptions, files []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	scenarios := make([]*harness.Scenario, 0, len(files))
	for _, file := range files {
		s, err := harness.LoadScenario(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "load scenario", err)
		}
		scenarios = append(scenarios, s)
	}

	var st *store.Store
	if opts.Database != "" {
		var storeOpts []store.Option
		if opts.IDGenerator != nil {
			storeOpts = append(storeOpts, store.WithIDGenerator(opts.IDGenerator))
		}
		var err error
		st, err = store.Open(opts.Database, storeOpts...)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	reports := make([]RunReport, 0, len(scenarios))
	failed := 0
	for _, s := range scenarios {
		result, err := harness.Run(ctx, s)
		if err != nil {
			return WrapExitError(ExitCommandError, "run scenario "+s.Name, err)
		}
		if !result.Pass {
			failed++
		}

		report := RunReport{Result: result}
		if st != nil {
			id, err := st.WriteRun(ctx, result.Scenario, result.Pass, result.Errors, toStoreEvents(result.Trace))
			if err != nil {
				return WrapExitError(ExitCommandError, "store run", err)
			}
			slog.Info("run stored", "scenario", s.Name, "run_id", id)
			report.RunID = id
		}
		reports = append(reports, report)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		if err := formatter.Success(reports); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for i, report := range reports {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if report.RunID != "" {
				fmt.Fprintf(w, "# run: %s\n", report.RunID)
			}
			fmt.Fprint(w, string(harness.FormatTrace(report.Result)))
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}

func toStoreEvents(trace []harness.Event) []store.Event {
	events := make([]store.Event, len(trace))
	for i, ev := range trace {
		events[i] = store.Event{
			Seq:    ev.Seq,
			Kind:   ev.Kind,
			Object: ev.Object,
			Member: ev.Member,
			Value:  ev.Value,
		}
	}
	return events
}

func fromStoreEvents(events []store.Event) []harness.Event {
	trace := make([]harness.Event, len(events))
	for i, ev := range events {
		trace[i] = harness.Event{
			Seq:    ev.Seq,
			Kind:   ev.Kind,
			Object: ev.Object,
			Member: ev.Member,
			Value:  ev.Value,
		}
	}
	return trace
}
