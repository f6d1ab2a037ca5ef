// Package render runs the external geometry engine that turns SCAD source
// into a mesh file.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/roach88/scadunit/internal/diag"
)

// Defaults for the engine invocation.
const (
	DefaultCommand = "openscad"
	DefaultFormat  = "stl"
	DefaultFn      = 50

	// ForcedExitCode replaces a zero exit code when the diagnostics show a
	// failure the engine did not report.
	ForcedExitCode = 1
)

var (
	// ErrEngineLaunch is returned when the engine process could not be started.
	ErrEngineLaunch = errors.New("engine launch failed")

	// ErrTimeout is returned when a render exceeds the configured timeout.
	ErrTimeout = errors.New("render timed out")
)

// Outcome is the result of one engine run.
type Outcome struct {
	// ExitCode is the engine exit code after reclassification. 0 is success.
	ExitCode int

	// Diagnostics is the raw stderr of the engine.
	Diagnostics string

	// Category holds the markers found in Diagnostics.
	Category diag.Category
}

// Failed reports whether the render failed.
func (o Outcome) Failed() bool {
	return o.ExitCode != 0
}

// Lines returns the diagnostic text split into lines.
func (o Outcome) Lines() []string {
	return diag.Lines(o.Diagnostics)
}

// Renderer renders a geometry source into a mesh file.
type Renderer interface {
	// Render writes source to workFile and renders it into outMesh.
	// A non-nil error means the engine could not be run to completion
	// (launch failure, timeout, cancellation); the Outcome is then failed.
	Render(ctx context.Context, source, workFile, outMesh string) (Outcome, error)
}

// Engine invokes the OpenSCAD command line.
type Engine struct {
	// Command is the engine executable.
	Command string

	// Args are passed before the generated arguments.
	Args []string

	// Format is the export format selector.
	Format string

	// Fn is the $fn resolution passed with -D. Zero omits it.
	Fn int

	// Timeout bounds a single render. Zero means no bound.
	Timeout time.Duration

	logger *slog.Logger
}

// NewEngine returns an Engine with the default format and resolution.
// An empty command selects DefaultCommand.
func NewEngine(command string, logger *slog.Logger) *Engine {
	if command == "" {
		command = DefaultCommand
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		Command: command,
		Format:  DefaultFormat,
		Fn:      DefaultFn,
		logger:  logger,
	}
}

// Render implements Renderer.
func (e *Engine) Render(ctx context.Context, source, workFile, outMesh string) (Outcome, error) {
	if err := WriteSource(source, workFile); err != nil {
		return Outcome{ExitCode: ForcedExitCode}, err
	}
	e.logger.Debug("rendering source", "file", workFile, "source", source)
	return e.run(ctx, workFile, outMesh)
}

// WriteSource writes source verbatim to path, replacing any previous content.
func WriteSource(source, path string) error {
	if err := os.WriteFile(path, []byte(source), 0644); err != nil {
		return fmt.Errorf("write source %s: %w", path, err)
	}
	return nil
}

// CommandLine returns the argument vector used to render workFile into outMesh.
func (e *Engine) CommandLine(workFile, outMesh string) []string {
	format := e.Format
	if format == "" {
		format = DefaultFormat
	}
	args := make([]string, 0, len(e.Args)+7)
	args = append(args, e.Args...)
	args = append(args, "--export-format", format, "-o", outMesh)
	if e.Fn > 0 {
		args = append(args, "-D", fmt.Sprintf("$fn=%d", e.Fn))
	}
	args = append(args, workFile)
	return append([]string{e.Command}, args...)
}

func (e *Engine) run(ctx context.Context, workFile, outMesh string) (Outcome, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	argv := e.CommandLine(workFile, outMesh)
	e.logger.Info("executing engine", "command", strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	configureProcess(cmd)
	cmd.WaitDelay = time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Outcome{Diagnostics: stderr.String()}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			out.ExitCode = ForcedExitCode
			out.Category = diag.Classify(out.Diagnostics)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return out, fmt.Errorf("%w after %s: %s", ErrTimeout, e.Timeout, workFile)
			}
			return out, fmt.Errorf("render cancelled: %w", ctx.Err())
		case errors.As(err, &exitErr):
			out.ExitCode = exitErr.ExitCode()
			if out.ExitCode == 0 {
				out.ExitCode = ForcedExitCode
			}
		default:
			out.ExitCode = ForcedExitCode
			return out, fmt.Errorf("%w: %s: %v", ErrEngineLaunch, e.Command, err)
		}
	}

	out.Category = diag.Classify(out.Diagnostics)
	if out.Category.Has(diag.ImportMissing) {
		e.logger.Error("failed import", "file", workFile)
		out.ExitCode = ForcedExitCode
	}
	if out.Category.Has(diag.UnknownVariable) {
		e.logger.Error("unknown variable when parsing", "file", workFile)
		out.ExitCode = ForcedExitCode
	}

	return out, nil
}
