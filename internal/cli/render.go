package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/scadunit/internal/harness"
	"github.com/roach88/scadunit/internal/oracle"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Suite      SuiteOptions
	OutputBase string
	CodeFile   string
	ReportFile string
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render expected meshes for mesh cases",
		Long: `Render the expected mesh of every case.

Each case CODE#PATH renders "use <LIBRARY>; CODE;" into PATH, joined to
--output-basedir when set. Missing directories are created. Every case is
attempted even after a failure.

Exit codes:
  0 - All cases rendered
  1 - A case failed to render
  2 - Command error

Examples:
  scadunit render --library gears.scad --render-cases "gear(10)#gear10.stl" --output-basedir expected
  scadunit render --suite gears.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, cmd)
		},
	}

	opts.Suite.addFlags(cmd, "render-cases", "case as CODE#OUTPUT.stl (repeatable)")
	cmd.Flags().StringVar(&opts.OutputBase, "output-basedir", "", "directory the output paths are relative to")
	cmd.Flags().StringVar(&opts.CodeFile, "scad-code-file", "", "path of the generated SCAD source (default: in a temp dir)")
	addReportFlag(cmd, &opts.ReportFile)

	return cmd
}

func runRender(opts *RenderOptions, cmd *cobra.Command) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	f := opts.formatter(cmd)
	logger := opts.logger(f.GetErrWriter())

	s, err := opts.Suite.buildSuite(cmd)
	if err != nil {
		return commandError(f, ErrCodeSuite, "invalid suite", err)
	}
	eng, err := opts.newEngine(cmd, s, logger)
	if err != nil {
		return commandError(f, ErrCodeSuite, "invalid suite", err)
	}

	workFile := opts.CodeFile
	if workFile == "" {
		tmp, err := os.MkdirTemp("", "scadunit-render-")
		if err != nil {
			return commandError(f, ErrCodeInput, "failed to prepare workdir", fmt.Errorf("create workdir: %w", err))
		}
		defer removeWorkdir(tmp, logger)
		workFile = filepath.Join(tmp, "code.scad")
	}

	rec, closeRec, err := opts.openRecorder(logger)
	if err != nil {
		return commandError(f, ErrCodeStore, "failed to open database", err)
	}
	defer closeRec()

	h := harness.New(eng, oracle.NewDifference(eng, logger), harnessOptions(logger, rec, opts.IDs)...)
	result, err := h.RenderExpected(ctx, s, opts.OutputBase, workFile)
	if err != nil {
		return commandError(f, ErrCodeSuite, "render failed", err)
	}
	if err := writeReportFile(opts.ReportFile, result); err != nil {
		return commandError(f, ErrCodeInput, "failed to write report", err)
	}
	return writeRunResult(f, result)
}
