// Package oracle decides directional containment between two meshes.
//
// The only implementation renders a boolean difference through the engine:
// difference() { import(B); import(A); } renders to nothing exactly when
// A's solid covers B's, and otherwise leaves the part of B outside A as a
// residual mesh. Callers depend on the ContainmentOracle interface so a
// different geometric test can replace it.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/scadunit/internal/diag"
	"github.com/roach88/scadunit/internal/mesh"
	"github.com/roach88/scadunit/internal/render"
)

// Containment is the verdict of one directional check.
type Containment struct {
	// Holds is true when A contains B, i.e. B minus A rendered empty.
	Holds bool

	// Residual is the path of the B minus A mesh. Empty when Holds is true
	// or when the engine failed before producing one.
	Residual string

	// Summary describes the residual mesh, when one was produced.
	Summary mesh.Summary

	// Outcome is the raw engine outcome of the difference render.
	Outcome render.Outcome

	// Err is set when the engine could not be run or failed for a reason
	// other than an empty result. The check then fails closed.
	Err error
}

// ContainmentOracle checks whether the solid of a contains the solid of b.
type ContainmentOracle interface {
	// Contains renders b minus a, writing the difference source to workFile
	// and any residual mesh to residual. It never returns an error: engine
	// failures are reported in Containment.Err with Holds false.
	Contains(ctx context.Context, a, b, workFile, residual string) Containment
}

// ErrEngine marks a difference render that failed without the empty-result
// signal.
var ErrEngine = errors.New("difference render failed")

// Difference is the boolean-difference ContainmentOracle.
type Difference struct {
	renderer render.Renderer
	logger   *slog.Logger
}

// NewDifference returns an oracle rendering through r.
func NewDifference(r render.Renderer, logger *slog.Logger) *Difference {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Difference{renderer: r, logger: logger}
}

// Contains implements ContainmentOracle.
func (d *Difference) Contains(ctx context.Context, a, b, workFile, residual string) Containment {
	// A stale residual from an earlier check must not survive a check that holds.
	if err := os.Remove(residual); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("could not remove stale residual", "path", residual, "error", err)
	}

	var c Containment
	source, err := differenceSource(a, b)
	if err == nil {
		c.Outcome, err = d.renderer.Render(ctx, source, workFile, residual)
	}
	outcome := c.Outcome
	if err != nil {
		c.Err = err
		d.logger.Error("difference render could not run", "container", a, "contained", b, "error", err)
		d.logLines(outcome)
		return c
	}

	switch {
	case outcome.Failed() && outcome.Category.Has(diag.EmptyResult) && !outcome.Category.ForcesFailure():
		c.Holds = true
		return c

	case !outcome.Failed():
		c.Residual = residual
		summary, err := mesh.Inspect(residual)
		if err != nil {
			d.logger.Warn("could not inspect residual mesh", "path", residual, "error", err)
		} else {
			c.Summary = summary
			d.logger.Info("residual geometry", "path", residual, "mesh", summary)
		}
		return c

	default:
		c.Err = fmt.Errorf("%w: exit code %d (%s)", ErrEngine, outcome.ExitCode, outcome.Category)
		d.logger.Error("difference render failed", "container", a, "contained", b, "exit_code", outcome.ExitCode)
		d.logLines(outcome)
		return c
	}
}

// differenceSource returns the source for b minus a with both meshes
// imported by absolute path.
func differenceSource(a, b string) (string, error) {
	absA, err := render.ResolvePath(a)
	if err != nil {
		return "", err
	}
	absB, err := render.ResolvePath(b)
	if err != nil {
		return "", err
	}
	return render.DifferenceSource(absB, absA), nil
}

func (d *Difference) logLines(outcome render.Outcome) {
	for _, line := range outcome.Lines() {
		d.logger.Error("engine diagnostic", "line", line)
	}
}
