// Package equiv decides whether two meshes describe the same solid.
//
// Two meshes are equivalent when each contains the other. Containment is
// directional, so both directions are always checked: one finds geometry
// the actual mesh added, the other finds geometry it lost. Vertex order,
// triangulation and the order of unioned bodies do not matter.
package equiv

import (
	"context"
	"io"
	"log/slog"

	"github.com/roach88/scadunit/internal/oracle"
)

// Paths names the files a comparison reads and writes.
type Paths struct {
	Expected string // expected mesh
	Actual   string // mesh under test

	// WorkFile receives the generated difference source.
	WorkFile string

	// NewParts receives geometry present in Actual but not in Expected.
	NewParts string

	// MissingParts receives geometry present in Expected but not in Actual.
	MissingParts string
}

// Result is the outcome of a comparison.
type Result struct {
	// Different is true unless both directions hold.
	Different bool

	// New is the check that Expected contains Actual.
	New oracle.Containment

	// Missing is the check that Actual contains Expected.
	Missing oracle.Containment
}

// NewPartsPath returns the new-geometry mesh path, or "" if none was produced.
func (r Result) NewPartsPath() string { return r.New.Residual }

// MissingPartsPath returns the missing-geometry mesh path, or "" if none was produced.
func (r Result) MissingPartsPath() string { return r.Missing.Residual }

// Comparer compares meshes through a ContainmentOracle.
type Comparer struct {
	oracle oracle.ContainmentOracle
	logger *slog.Logger
}

// NewComparer returns a Comparer backed by o.
func NewComparer(o oracle.ContainmentOracle, logger *slog.Logger) *Comparer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Comparer{oracle: o, logger: logger}
}

// Differs compares p.Actual against p.Expected. Both directions run even
// when the first already shows a difference, so both diagnostic meshes exist
// for inspection.
func (c *Comparer) Differs(ctx context.Context, p Paths) Result {
	c.logger.Info("comparing meshes", "actual", p.Actual, "expected", p.Expected)

	var res Result

	c.logger.Info("looking for new areas")
	res.New = c.oracle.Contains(ctx, p.Expected, p.Actual, p.WorkFile, p.NewParts)
	if !res.New.Holds {
		res.Different = true
		c.logger.Error("new areas located", "new_parts", p.NewParts)
	}

	c.logger.Info("looking for missing areas")
	res.Missing = c.oracle.Contains(ctx, p.Actual, p.Expected, p.WorkFile, p.MissingParts)
	if !res.Missing.Holds {
		res.Different = true
		c.logger.Error("missing areas located", "missing_parts", p.MissingParts)
	}

	return res
}
