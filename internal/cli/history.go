package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scadunit/internal/harness"
	"github.com/roach88/scadunit/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Suite string
	Limit int
}

// RunList is the text rendering of stored runs.
type RunList []store.Run

func (l RunList) String() string {
	if len(l) == 0 {
		return "No runs recorded."
	}
	var b strings.Builder
	for i, r := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		status := "PASS"
		if !r.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%s  %s  %-6s %s  %s  %d passed, %d failed, %d skipped",
			r.RecordedAt, r.ID, r.Command, status, r.Suite, r.Passed, r.Failed, r.Skipped)
	}
	return b.String()
}

// RunDetail is a stored run with its cases.
type RunDetail struct {
	Run    store.Run            `json:"run"`
	Cases  []harness.CaseResult `json:"cases"`
	Report json.RawMessage      `json:"report"`
}

func (d RunDetail) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s) suite=%s library=%s recorded %s",
		d.Run.ID, d.Run.Command, d.Run.Suite, d.Run.Library, d.Run.RecordedAt)
	for _, c := range d.Cases {
		fmt.Fprintf(&b, "\n  #%d %-9s %-13s %s", c.Index, c.Kind, c.State, c.Code)
		if c.Failure != "" {
			fmt.Fprintf(&b, ": %s", c.Failure)
		}
		if c.NewParts != "" {
			fmt.Fprintf(&b, "\n      new parts: %s", c.NewParts)
		}
		if c.MissingParts != "" {
			fmt.Fprintf(&b, "\n      missing parts: %s", c.MissingParts)
		}
	}
	fmt.Fprintf(&b, "\ndigest %s", d.Run.Digest)
	return b.String()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs",
		Long: `List the runs recorded in the --db history database, newest first.

With a run id, print that run's cases and its stored report.

Examples:
  scadunit history --db history.db
  scadunit history --db history.db --suite gears --limit 5
  scadunit history --db history.db 01927c3e-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Suite, "suite", "", "only runs of this suite")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if opts.Database == "" {
		return commandError(f, ErrCodeStore, "--db is required", errors.New("no history database"))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return commandError(f, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if len(args) == 0 {
		runs, err := st.ListRuns(ctx, opts.Suite, opts.Limit)
		if err != nil {
			return commandError(f, ErrCodeStore, "failed to list runs", err)
		}
		if f.isJSON() {
			return f.Success(runs)
		}
		return f.Success(RunList(runs))
	}

	runID := args[0]
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return commandError(f, ErrCodeStore, "failed to read run", err)
	}
	cases, err := st.ReadCases(ctx, runID)
	if err != nil {
		return commandError(f, ErrCodeStore, "failed to read cases", err)
	}
	data, err := st.ReadReport(ctx, runID)
	if err != nil {
		return commandError(f, ErrCodeStore, "failed to read report", err)
	}

	return f.SuccessRun(runID, RunDetail{Run: run, Cases: cases, Report: data})
}
