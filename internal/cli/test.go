package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/scadunit/internal/harness"
	"github.com/roach88/scadunit/internal/oracle"
	"github.com/roach88/scadunit/internal/report"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Suite      SuiteOptions
	Workspace  WorkspaceOptions
	ReportFile string
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run mesh cases and assertion checks",
		Long: `Run a suite against the library under test.

Each mesh case renders "use <LIBRARY>; CODE;" and compares the result
volumetrically with the expected mesh. Each assertion check renders its
code and expects OpenSCAD to report a failed assert(). The run stops at
the first failing case; later cases are reported as skipped.

When meshes differ, the geometry present only in the render is written to
new_parts.stl and the geometry present only in the expected mesh to
missing_parts.stl in the working directory.

Exit codes:
  0 - All cases passed
  1 - A case failed
  2 - Command error (invalid flags, malformed case, unreadable suite, etc.)

Examples:
  scadunit test --library gears.scad --testcases "gear(10)#expected/gear10.stl"
  scadunit test --library gears.scad --assertion-check "gear(-1)"
  scadunit test --suite gears.yaml --workdir build/gears
  scadunit test --suite gears.cue --format json --db history.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()

			f := opts.formatter(cmd)
			result, err := opts.run(ctx, cmd, f, opts.logger(f.GetErrWriter()))
			if err != nil {
				return err
			}
			if err := writeReportFile(opts.ReportFile, result); err != nil {
				return commandError(f, ErrCodeInput, "failed to write report", err)
			}
			return writeRunResult(f, result)
		},
	}

	opts.Suite.addFlags(cmd, "testcases", `mesh case as CODE#EXPECTED.stl (repeatable)`)
	cmd.Flags().StringArrayVar(&opts.Suite.Assertions, "assertion-check", nil, "code that must trigger an assertion (repeatable)")
	opts.Workspace.addFlags(cmd)
	addReportFlag(cmd, &opts.ReportFile)

	return cmd
}

// run builds the suite and executes it once.
func (o *TestOptions) run(ctx context.Context, cmd *cobra.Command, f *OutputFormatter, logger *slog.Logger) (*harness.Result, error) {
	s, err := o.Suite.buildSuite(cmd)
	if err != nil {
		return nil, commandError(f, ErrCodeSuite, "invalid suite", err)
	}
	if err := s.Validate(); err != nil {
		return nil, commandError(f, ErrCodeSuite, "invalid suite", err)
	}

	eng, err := o.newEngine(cmd, s, logger)
	if err != nil {
		return nil, commandError(f, ErrCodeSuite, "invalid suite", err)
	}

	ws, tmp, err := o.Workspace.workspace(s)
	if err != nil {
		return nil, commandError(f, ErrCodeInput, "failed to prepare workdir", err)
	}

	rec, closeRec, err := o.openRecorder(logger)
	if err != nil {
		return nil, commandError(f, ErrCodeStore, "failed to open database", err)
	}
	defer closeRec()

	f.VerboseLog("workdir: %s", filepath.Dir(ws.Code))

	h := harness.New(eng, oracle.NewDifference(eng, logger), harnessOptions(logger, rec, o.IDs)...)
	result, err := h.Run(ctx, s, ws)
	if err != nil {
		return nil, commandError(f, ErrCodeSuite, "run failed", err)
	}

	if tmp != "" {
		if result.Pass {
			removeWorkdir(tmp, logger)
		} else {
			logger.Info("keeping workdir for inspection", "dir", tmp)
		}
	}
	return result, nil
}

// removeWorkdir deletes a temporary workdir, logging any failure.
func removeWorkdir(dir string, logger *slog.Logger) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("failed to remove workdir", "dir", dir, "error", err)
	}
}

func harnessOptions(logger *slog.Logger, rec harness.Recorder, ids harness.IDGenerator) []harness.Option {
	opts := []harness.Option{harness.WithLogger(logger)}
	if rec != nil {
		opts = append(opts, harness.WithRecorder(rec))
	}
	if ids != nil {
		opts = append(opts, harness.WithIDGenerator(ids))
	}
	return opts
}

func addReportFlag(cmd *cobra.Command, p *string) {
	cmd.Flags().StringVar(p, "report", "", "also write the canonical JSON report to this file")
}

// writeReportFile writes the canonical report of r to path, replacing the
// file. An empty path writes nothing.
func writeReportFile(path string, r *harness.Result) error {
	if path == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := report.WriteJSON(&buf, r); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// writeRunResult prints r and maps a failed run to ExitFailure.
func writeRunResult(f *OutputFormatter, r *harness.Result) error {
	var err error
	switch {
	case !f.isJSON():
		err = report.WriteText(f.Writer, r)
	case r.Pass:
		err = f.SuccessRun(r.RunID, report.Build(r))
	default:
		err = f.Error(ErrCodeFailure, r.Err().Error(), report.Build(r))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	if !r.Pass {
		return WrapExitError(ExitFailure, r.Command+" failed", r.Err())
	}
	return nil
}

// commandError reports err in JSON mode and wraps it as a command error.
func commandError(f *OutputFormatter, code, message string, err error) error {
	_ = f.Error(code, message, err.Error())
	return WrapExitError(ExitCommandError, message, err)
}

// commandContext returns the command's context, cancelled on SIGINT or
// SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
