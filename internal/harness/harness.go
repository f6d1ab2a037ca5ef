package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/scadunit/internal/diag"
	"github.com/roach88/scadunit/internal/equiv"
	"github.com/roach88/scadunit/internal/oracle"
	"github.com/roach88/scadunit/internal/render"
	"github.com/roach88/scadunit/internal/suite"
)

// Workspace holds the scratch files reused by every case of a run.
type Workspace struct {
	Code         string // SCAD source handed to the engine
	Render       string // mesh rendered from the case under test
	NewParts     string // geometry in the render but not in the expected mesh
	MissingParts string // geometry in the expected mesh but not in the render
}

// NewWorkspace returns a Workspace with its files inside dir.
func NewWorkspace(dir string) Workspace {
	return Workspace{
		Code:         filepath.Join(dir, "code.scad"),
		Render:       filepath.Join(dir, "render.stl"),
		NewParts:     filepath.Join(dir, "new_parts.stl"),
		MissingParts: filepath.Join(dir, "missing_parts.stl"),
	}
}

// Prepare creates the directories of every workspace file.
func (w Workspace) Prepare() error {
	for _, p := range []string{w.Code, w.Render, w.NewParts, w.MissingParts} {
		if p == "" {
			return fmt.Errorf("workspace file path is empty")
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("prepare workspace: %w", err)
		}
	}
	return nil
}

// Recorder persists finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, r *Result) error
}

// Harness runs suites against a rendering engine.
type Harness struct {
	renderer render.Renderer
	comparer *equiv.Comparer
	ids      IDGenerator
	recorder Recorder
	logger   *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// WithIDGenerator sets the run id generator. The default is UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(h *Harness) { h.ids = ids }
}

// WithRecorder records every finished run.
func WithRecorder(r Recorder) Option {
	return func(h *Harness) { h.recorder = r }
}

// New returns a Harness rendering cases with r and comparing meshes with o.
func New(r render.Renderer, o oracle.ContainmentOracle, opts ...Option) *Harness {
	h := &Harness{
		renderer: r,
		ids:      UUIDv7Generator{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.comparer = equiv.NewComparer(o, h.logger)
	return h
}

// Run executes the mesh cases and then the assertion cases of s, stopping
// at the first failure. The returned error reports a run that could not be
// set up; case failures are reported through Result.Pass.
func (h *Harness) Run(ctx context.Context, s *suite.Suite, ws Workspace) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	if err := ws.Prepare(); err != nil {
		return nil, err
	}
	library, err := render.ResolvePath(s.Library)
	if err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}

	result := h.newResult("test", s)
	for _, c := range s.Cases {
		result.Cases = append(result.Cases, CaseResult{
			Index:    len(result.Cases),
			Kind:     KindMesh,
			Code:     c.Code,
			Expected: c.Expected,
			State:    StatePending,
		})
	}
	for _, code := range s.Assertions {
		result.Cases = append(result.Cases, CaseResult{
			Index: len(result.Cases),
			Kind:  KindAssertion,
			Code:  code,
			State: StatePending,
		})
	}

	h.logger.Info("starting run", "run_id", result.RunID, "suite", s.Name, "library", s.Library, "cases", len(result.Cases))

	for i := range result.Cases {
		c := &result.Cases[i]

		var (
			ok  bool
			err error
		)
		switch c.Kind {
		case KindMesh:
			ok, err = h.runMeshCase(ctx, library, ws, c)
		case KindAssertion:
			ok, err = h.runAssertionCase(ctx, library, ws, c)
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			result.Pass = false
			if err := skipRemaining(result.Cases[i+1:]); err != nil {
				return nil, err
			}
			break
		}
	}

	h.finish(ctx, result)
	return result, nil
}

func (h *Harness) runMeshCase(ctx context.Context, library string, ws Workspace, c *CaseResult) (bool, error) {
	h.logger.Info("testing case", "index", c.Index, "code", c.Code, "expected", c.Expected)

	outcome, renderErr := h.renderer.Render(ctx, render.WrapSnippet(library, c.Code), ws.Code, ws.Render)
	recordOutcome(c, outcome)
	if renderErr != nil || outcome.Failed() {
		h.logger.Error("failed to render", "index", c.Index, "code", c.Code, "exit_code", outcome.ExitCode)
		return false, h.failRender(c, outcome, renderErr)
	}
	if err := c.advance(StateRendered); err != nil {
		return false, err
	}

	if _, err := os.Stat(c.Expected); err != nil {
		c.Failure = EquivalenceFailure
		c.Error = fmt.Sprintf("expected mesh unavailable: %v", err)
		h.logger.Error("expected mesh unavailable", "index", c.Index, "expected", c.Expected, "error", err)
		return false, c.advance(StateDiffers)
	}

	cmp := h.comparer.Differs(ctx, equiv.Paths{
		Expected:     c.Expected,
		Actual:       ws.Render,
		WorkFile:     ws.Code,
		NewParts:     ws.NewParts,
		MissingParts: ws.MissingParts,
	})
	if !cmp.Different {
		h.logger.Info("case passed", "index", c.Index, "code", c.Code)
		return true, c.advance(StateEquivalent)
	}

	c.Failure = EquivalenceFailure
	c.NewParts = cmp.NewPartsPath()
	c.MissingParts = cmp.MissingPartsPath()
	if cmp.New.Err != nil {
		c.Error = fmt.Sprintf("new parts check: %v", cmp.New.Err)
	} else if cmp.Missing.Err != nil {
		c.Error = fmt.Sprintf("missing parts check: %v", cmp.Missing.Err)
	}
	h.logger.Error("failed testing case",
		"index", c.Index,
		"code", c.Code,
		"expected", c.Expected,
		"new_parts", ws.NewParts,
		"missing_parts", ws.MissingParts,
	)
	return false, c.advance(StateDiffers)
}

func (h *Harness) runAssertionCase(ctx context.Context, library string, ws Workspace, c *CaseResult) (bool, error) {
	h.logger.Info("testing that code generates an assertion", "index", c.Index, "code", c.Code)

	outcome, renderErr := h.renderer.Render(ctx, render.WrapSnippet(library, c.Code), ws.Code, ws.Render)
	recordOutcome(c, outcome)
	if renderErr != nil {
		h.logger.Error("failed to render", "index", c.Index, "code", c.Code)
		return false, h.failRender(c, outcome, renderErr)
	}
	if err := c.advance(StateRendered); err != nil {
		return false, err
	}

	if outcome.Category.Has(diag.AssertionTriggered) {
		h.logger.Info("case passed", "index", c.Index, "code", c.Code)
		return true, c.advance(StateAsserted)
	}

	c.Failure = AssertionExpectationFailure
	c.Diagnostics = outcome.Lines()
	h.logger.Error("code didn't produce assertion", "index", c.Index, "code", c.Code, "exit_code", outcome.ExitCode)
	h.logDiagnostics(c.Diagnostics)
	return false, c.advance(StateNoAssertion)
}

// failRender marks c as a failed render and logs every diagnostic line.
func (h *Harness) failRender(c *CaseResult, outcome render.Outcome, renderErr error) error {
	c.Failure = RenderFailure
	c.Diagnostics = outcome.Lines()
	if renderErr != nil {
		c.Error = renderErr.Error()
		h.logger.Error("engine could not run", "index", c.Index, "error", renderErr)
	}
	h.logDiagnostics(c.Diagnostics)
	return c.advance(StateRenderFailed)
}

func (h *Harness) logDiagnostics(lines []string) {
	for _, line := range lines {
		h.logger.Error("engine diagnostic", "line", line)
	}
}

func (h *Harness) newResult(command string, s *suite.Suite) *Result {
	return &Result{
		RunID:   h.ids.Generate(),
		Command: command,
		Suite:   s.Name,
		Library: s.Library,
		Pass:    true,
		Cases:   []CaseResult{},
	}
}

// finish logs the summary and records the run. A recording failure is
// logged and does not change the result.
func (h *Harness) finish(ctx context.Context, result *Result) {
	passed, failed, skipped := result.Counts()
	h.logger.Info("run finished",
		"run_id", result.RunID,
		"pass", result.Pass,
		"passed", passed,
		"failed", failed,
		"skipped", skipped,
	)

	if h.recorder == nil {
		return
	}
	if err := h.recorder.RecordRun(ctx, result); err != nil {
		h.logger.Error("failed to record run", "run_id", result.RunID, "error", err)
	}
}

func recordOutcome(c *CaseResult, outcome render.Outcome) {
	c.ExitCode = outcome.ExitCode
	if outcome.Category != diag.Other {
		c.Category = outcome.Category.Names()
	}
}

func skipRemaining(cases []CaseResult) error {
	for i := range cases {
		if err := cases[i].advance(StateSkipped); err != nil {
			return err
		}
	}
	return nil
}
