package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/scadunit/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	TestOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{TestOptions: TestOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rerun the suite when the library changes",
		Long: `Run the suite, then run it again whenever the library under test or
the suite file changes. Stops on Ctrl-C.

Takes the same flags as "scadunit test".

Example:
  scadunit watch --suite gears.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	opts.Suite.addFlags(cmd, "testcases", `mesh case as CODE#EXPECTED.stl (repeatable)`)
	cmd.Flags().StringArrayVar(&opts.Suite.Assertions, "assertion-check", nil, "code that must trigger an assertion (repeatable)")
	opts.Workspace.addFlags(cmd)
	addReportFlag(cmd, &opts.ReportFile)
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "quiet time before a change reruns the suite")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	f := opts.formatter(cmd)
	logger := opts.logger(f.GetErrWriter())

	s, err := opts.Suite.buildSuite(cmd)
	if err != nil {
		return commandError(f, ErrCodeSuite, "invalid suite", err)
	}
	if err := s.Validate(); err != nil {
		return commandError(f, ErrCodeSuite, "invalid suite", err)
	}

	runOnce := func(ctx context.Context) {
		result, err := opts.run(ctx, cmd, f, logger)
		if err != nil {
			logger.Error("run failed", "error", err)
			return
		}
		if err := writeReportFile(opts.ReportFile, result); err != nil {
			logger.Error("failed to write report", "error", err)
		}
		if err := writeRunResult(f, result); err != nil && GetExitCode(err) != ExitFailure {
			logger.Error("failed to write result", "error", err)
		}
	}

	w, err := watch.New(opts.Suite.watchedFiles(s), func(ctx context.Context, changed []string) {
		logger.Info("rerunning suite", "changed", changed)
		runOnce(ctx)
	}, watch.WithDebounce(opts.Debounce), watch.WithLogger(logger))
	if err != nil {
		return commandError(f, ErrCodeInput, "failed to watch files", err)
	}

	runOnce(ctx)
	logger.Info("watching for changes", "files", w.Files())
	if err := w.Run(ctx); err != nil {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	return nil
}
