package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/knit/internal/harness"
	"github.com/roach88/knit/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Scenario string // with --list, only runs of this scenario
	Kind     string // only events of this kind
	Object   string // only events of this object
	List     bool
}

// RunSummary is one line of the run list.
type RunSummary struct {
	ID       string `json:"id"`
	Scenario string `json:"scenario"`
	Pass     bool   `json:"pass"`
	Events   int    `json:"events"`
}

// TraceResult is the JSON result of the trace command.
type TraceResult struct {
	RunID  string          `json:"run_id"`
	Result *harness.Result `json:"result"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show stored scenario traces",
		Long: `Show a trace stored by "knit run --db".

Without --run the most recent run is shown. --list prints the stored runs
instead. --kind and --object narrow the trace to matching events.

Examples:
  knit trace --db ./knit.db
  knit trace --db ./knit.db --list --scenario context_order
  knit trace --db ./knit.db --run 0192... --kind property --object label
  knit trace --db ./knit.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to show (default: latest)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list stored runs")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "with --list, only runs of this scenario")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only events of this kind (step|property|source|error)")
	cmd.Flags().StringVar(&opts.Object, "object", "", "only events of this object")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	// Opening creates the file, which a read-only command must not do.
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeLoad, "database not found", opts.Database)
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if opts.List {
		return listRuns(ctx, st, opts, formatter)
	}

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeRunNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	events, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := &harness.Result{
		Scenario: run.Scenario,
		Pass:     run.Pass,
		Trace:    filterEvents(fromStoreEvents(events), opts.Kind, opts.Object),
		Errors:   run.Errors,
	}

	if opts.Format == "json" {
		return formatter.Success(TraceResult{RunID: run.ID, Result: result})
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "# run: %s\n", run.ID)
	fmt.Fprint(w, string(harness.FormatTrace(result)))
	return nil
}

func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx, opts.Scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = RunSummary{ID: r.ID, Scenario: r.Scenario, Pass: r.Pass, Events: r.Events}
	}

	if opts.Format == "json" {
		return formatter.Success(summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs found.")
		return nil
	}
	for _, s := range summaries {
		status := "pass"
		if !s.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(formatter.Writer, "%s  %-4s  %4d events  %s\n", s.ID, status, s.Events, s.Scenario)
	}
	return nil
}

// filterEvents keeps the events matching kind and object; an empty filter
// matches everything.
func filterEvents(trace []harness.Event, kind, object string) []harness.Event {
	if kind == "" && object == "" {
		return trace
	}
	out := make([]harness.Event, 0, len(trace))
	for _, ev := range trace {
		if kind != "" && ev.Kind != kind {
			continue
		}
		if object != "" && ev.Object != object {
			continue
		}
		out = append(out, ev)
	}
	return out
}
