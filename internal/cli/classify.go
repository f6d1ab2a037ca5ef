package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scadunit/internal/diag"
)

// ClassifyResult holds the markers found in diagnostic text.
type ClassifyResult struct {
	Categories    []string `json:"categories"`
	ForcesFailure bool     `json:"forces_failure"`
	Lines         int      `json:"lines"`
}

func (r ClassifyResult) String() string {
	s := strings.Join(r.Categories, "|")
	if r.ForcesFailure {
		s += " (forces failure)"
	}
	return s
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [file|-]",
		Short: "Classify OpenSCAD diagnostic output",
		Long: `Print the diagnostic categories found in OpenSCAD stderr output.

Reads the file argument, or standard input when the argument is "-" or
missing. Categories: import_missing, unknown_variable, empty_result,
assertion_triggered, or other when no marker matches.

Example:
  openscad -o out.stl part.scad 2>&1 | scadunit classify`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runClassify(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return commandError(f, ErrCodeInput, "failed to read diagnostics", err)
	}

	text := string(data)
	cat := diag.Classify(text)
	result := ClassifyResult{
		Categories:    cat.Names(),
		ForcesFailure: cat.ForcesFailure(),
		Lines:         len(diag.Lines(text)),
	}
	if err := f.Success(result); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", fmt.Errorf("classify: %w", err))
	}
	return nil
}
