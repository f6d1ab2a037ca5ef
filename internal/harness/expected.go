package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/scadunit/internal/render"
	"github.com/roach88/scadunit/internal/suite"
)

// RenderExpected renders every mesh case of s into its expected mesh path,
// joined to baseDir when baseDir is set. Missing directories are created.
// Unlike Run, every case is attempted; the result passes only if all
// renders succeeded. Assertion cases are ignored.
func (h *Harness) RenderExpected(ctx context.Context, s *suite.Suite, baseDir, workFile string) (*Result, error) {
	if s.Library == "" {
		return nil, fmt.Errorf("invalid suite: library is required")
	}
	if len(s.Cases) == 0 {
		return nil, fmt.Errorf("invalid suite: at least one case is required")
	}
	if err := os.MkdirAll(filepath.Dir(workFile), 0755); err != nil {
		return nil, fmt.Errorf("prepare work file: %w", err)
	}
	library, err := render.ResolvePath(s.Library)
	if err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}

	result := h.newResult("render", s)
	for i, sc := range s.Cases {
		target := sc.Expected
		if baseDir != "" {
			target = filepath.Join(baseDir, sc.Expected)
		}
		result.Cases = append(result.Cases, CaseResult{
			Index:  i,
			Kind:   KindRender,
			Code:   sc.Code,
			Output: target,
			State:  StatePending,
		})
	}

	for i := range result.Cases {
		c := &result.Cases[i]
		h.logger.Info("rendering case", "index", c.Index, "code", c.Code, "output", c.Output)

		dir := filepath.Dir(c.Output)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			h.logger.Info("creating missing directory", "dir", dir)
			if err := os.MkdirAll(dir, 0755); err != nil {
				c.Failure = RenderFailure
				c.Error = err.Error()
				result.Pass = false
				h.logger.Error("failed to create directory", "dir", dir, "error", err)
				if err := c.advance(StateRenderFailed); err != nil {
					return nil, err
				}
				continue
			}
		}

		outcome, renderErr := h.renderer.Render(ctx, render.WrapSnippet(library, c.Code), workFile, c.Output)
		recordOutcome(c, outcome)
		if renderErr != nil || outcome.Failed() {
			result.Pass = false
			h.logger.Error("failed to render", "index", c.Index, "code", c.Code, "exit_code", outcome.ExitCode)
			if err := h.failRender(c, outcome, renderErr); err != nil {
				return nil, err
			}
			if ctx.Err() != nil {
				if err := skipRemaining(result.Cases[i+1:]); err != nil {
					return nil, err
				}
				break
			}
			continue
		}
		if err := c.advance(StateRendered); err != nil {
			return nil, err
		}
	}

	h.finish(ctx, result)
	return result, nil
}
