package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/scadunit/internal/harness"
)

// EnvOpenSCAD names the environment variable that selects the engine command.
const EnvOpenSCAD = "SCADUNIT_OPENSCAD"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	OpenSCAD string
	Timeout  time.Duration
	Database string

	// Logger overrides the stderr logger (for testing).
	Logger *slog.Logger

	// IDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs harness.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the scadunit CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Execute runs the scadunit CLI with the process arguments.
func Execute() error {
	return execute(NewRootCommand())
}

// execute runs cmd. Errors that are not already an ExitError (flag and
// argument errors reported by cobra) become command errors.
func execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return WrapExitError(ExitCommandError, "command error", err)
	}
	return err
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scadunit",
		Short: "scadunit - unit tests for OpenSCAD libraries",
		Long: `Unit tests for OpenSCAD libraries.

Snippets that use the library under test are rendered with OpenSCAD and
compared volumetrically against expected meshes, or checked for a failing
assert().`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Timeout < 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid timeout %s: must not be negative", opts.Timeout))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.OpenSCAD, "openscad", "", "OpenSCAD command (default $"+EnvOpenSCAD+" or openscad)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "time limit for each render (0 = none)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")

	// Add subcommands
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewClassifyCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// logger returns the configured logger, or a text logger on w whose level
// follows the verbose flag.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// engineCommand resolves the engine command: flag, then suite, then
// environment, then the default.
func (o *RootOptions) engineCommand(fromSuite string) string {
	switch {
	case o.OpenSCAD != "":
		return o.OpenSCAD
	case fromSuite != "":
		return fromSuite
	default:
		return os.Getenv(EnvOpenSCAD)
	}
}
