package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scadunit/internal/equiv"
	"github.com/roach88/scadunit/internal/oracle"
	"github.com/roach88/scadunit/internal/render"
	"github.com/roach88/scadunit/internal/suite"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Workspace WorkspaceOptions
}

// DiffResult is the outcome of comparing two meshes.
type DiffResult struct {
	Expected     string    `json:"expected"`
	Actual       string    `json:"actual"`
	Equivalent   bool      `json:"equivalent"`
	NewParts     *Residual `json:"new_parts,omitempty"`
	MissingParts *Residual `json:"missing_parts,omitempty"`
	Errors       []string  `json:"errors,omitempty"`
}

// Residual describes a diagnostic mesh written by a failed containment check.
type Residual struct {
	Path      string     `json:"path"`
	Triangles int        `json:"triangles"`
	Min       [3]float64 `json:"min"`
	Max       [3]float64 `json:"max"`
}

func newResidual(c oracle.Containment) *Residual {
	if c.Residual == "" {
		return nil
	}
	return &Residual{
		Path:      c.Residual,
		Triangles: c.Summary.Triangles,
		Min:       c.Summary.Min,
		Max:       c.Summary.Max,
	}
}

func (r *Residual) String() string {
	if r.Triangles == 0 {
		return r.Path
	}
	return fmt.Sprintf("%s (%d triangles, %v to %v)", r.Path, r.Triangles, r.Min, r.Max)
}

func (r DiffResult) String() string {
	var b strings.Builder
	if r.Equivalent {
		fmt.Fprintf(&b, "equivalent: %s and %s", r.Actual, r.Expected)
		return b.String()
	}
	fmt.Fprintf(&b, "differs: %s and %s", r.Actual, r.Expected)
	if r.NewParts != nil {
		fmt.Fprintf(&b, "\n  new parts: %s", r.NewParts)
	}
	if r.MissingParts != nil {
		fmt.Fprintf(&b, "\n  missing parts: %s", r.MissingParts)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n  error: %s", e)
	}
	return b.String()
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <expected.stl> <actual.stl>",
		Short: "Compare two existing meshes",
		Long: `Compare two meshes volumetrically.

Both containment directions are checked. Geometry present only in ACTUAL is
written to new_parts.stl, geometry present only in EXPECTED to
missing_parts.stl.

Exit codes:
  0 - Meshes are equivalent
  1 - Meshes differ
  2 - Command error

Examples:
  scadunit diff expected/gear10.stl build/gear10.stl --workdir build/diff`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], args[1], cmd)
		},
	}

	opts.Workspace.addFlags(cmd)

	return cmd
}

func runDiff(opts *DiffOptions, expected, actual string, cmd *cobra.Command) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	f := opts.formatter(cmd)
	logger := opts.logger(f.GetErrWriter())

	for _, p := range []string{expected, actual} {
		if _, err := os.Stat(p); err != nil {
			return commandError(f, ErrCodeInput, fmt.Sprintf("mesh not found: %s", p), err)
		}
	}

	s := &suite.Suite{Fn: render.DefaultFn}
	eng, err := opts.newEngine(cmd, s, logger)
	if err != nil {
		return commandError(f, ErrCodeSuite, "invalid settings", err)
	}

	ws, tmp, err := opts.Workspace.workspace(s)
	if err != nil {
		return commandError(f, ErrCodeInput, "failed to prepare workdir", err)
	}
	if err := ws.Prepare(); err != nil {
		return commandError(f, ErrCodeInput, "failed to prepare workdir", err)
	}
	f.VerboseLog("workdir: %s", filepath.Dir(ws.Code))

	cmp := equiv.NewComparer(oracle.NewDifference(eng, logger), logger)
	res := cmp.Differs(ctx, equiv.Paths{
		Expected:     expected,
		Actual:       actual,
		WorkFile:     ws.Code,
		NewParts:     ws.NewParts,
		MissingParts: ws.MissingParts,
	})

	out := DiffResult{
		Expected:     expected,
		Actual:       actual,
		Equivalent:   !res.Different,
		NewParts:     newResidual(res.New),
		MissingParts: newResidual(res.Missing),
	}
	for _, c := range []oracle.Containment{res.New, res.Missing} {
		if c.Err != nil {
			out.Errors = append(out.Errors, c.Err.Error())
		}
	}

	if tmp != "" {
		if res.Different {
			logger.Info("keeping workdir for inspection", "dir", tmp)
		} else {
			removeWorkdir(tmp, logger)
		}
	}

	if err := f.Success(out); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if res.Different {
		return NewExitError(ExitFailure, "meshes differ")
	}
	return nil
}
