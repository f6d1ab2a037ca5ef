package harness

import (
	"fmt"
)

// Kind distinguishes what a case checks.
type Kind string

const (
	KindMesh      Kind = "mesh"      // render and compare against an expected mesh
	KindAssertion Kind = "assertion" // render and expect an engine assertion
	KindRender    Kind = "render"    // render an expected mesh, no comparison
)

// State is the position of a case in its lifecycle.
type State string

const (
	StatePending      State = "pending"
	StateRendered     State = "rendered"
	StateEquivalent   State = "equivalent"
	StateDiffers      State = "differs"
	StateAsserted     State = "asserted"
	StateNoAssertion  State = "no_assertion"
	StateRenderFailed State = "render_failed"
	StateSkipped      State = "skipped"
)

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	switch s {
	case StateEquivalent, StateDiffers, StateAsserted, StateNoAssertion, StateRenderFailed, StateSkipped:
		return true
	default:
		return false
	}
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRendered || to == StateRenderFailed || to == StateSkipped
	case StateRendered:
		return to == StateEquivalent || to == StateDiffers || to == StateAsserted || to == StateNoAssertion
	default:
		return false
	}
}

// FailureKind classifies why a case failed.
type FailureKind string

const (
	// RenderFailure means the engine reported or implied a failed render.
	RenderFailure FailureKind = "render_failure"

	// EquivalenceFailure means the rendered mesh is not volumetrically
	// equal to the expected mesh.
	EquivalenceFailure FailureKind = "equivalence_failure"

	// AssertionExpectationFailure means an assertion case rendered without
	// the engine reporting an assertion.
	AssertionExpectationFailure FailureKind = "assertion_expectation_failure"
)

// CaseResult is the outcome of one case.
type CaseResult struct {
	Index    int    `json:"index"`
	Kind     Kind   `json:"kind"`
	Code     string `json:"code"`
	Expected string `json:"expected,omitempty"`

	// Output is the mesh a render case wrote.
	Output string `json:"output,omitempty"`

	State   State       `json:"state"`
	Failure FailureKind `json:"failure,omitempty"`

	// ExitCode is the engine exit code of the case render, after
	// reclassification.
	ExitCode int `json:"exit_code"`

	// Category lists the diagnostic markers of the case render.
	Category []string `json:"category,omitempty"`

	// Diagnostics holds every engine diagnostic line of a failed render.
	Diagnostics []string `json:"diagnostics,omitempty"`

	// NewParts and MissingParts are the diagnostic meshes of a failed
	// comparison; each is set only when that residual was produced.
	NewParts     string `json:"new_parts,omitempty"`
	MissingParts string `json:"missing_parts,omitempty"`

	// Error describes an infrastructure failure behind the case result.
	Error string `json:"error,omitempty"`
}

// Passed reports whether the case finished successfully.
func (c *CaseResult) Passed() bool {
	switch c.State {
	case StateEquivalent, StateAsserted:
		return true
	case StateRendered:
		return c.Kind == KindRender
	default:
		return false
	}
}

// advance moves the case to state to, rejecting transitions the lifecycle
// does not allow.
func (c *CaseResult) advance(to State) error {
	if !isAllowedTransition(c.State, to) {
		return fmt.Errorf("case %d: disallowed transition %s -> %s", c.Index, c.State, to)
	}
	c.State = to
	return nil
}

// Result is the outcome of a run.
type Result struct {
	RunID   string `json:"run_id"`
	Command string `json:"command"` // "test" or "render"
	Suite   string `json:"suite,omitempty"`
	Library string `json:"library,omitempty"`

	// Pass is true when every case passed.
	Pass bool `json:"pass"`

	Cases []CaseResult `json:"cases"`
}

// FirstFailure returns the first failed case, or nil.
func (r *Result) FirstFailure() *CaseResult {
	for i := range r.Cases {
		c := &r.Cases[i]
		if c.State != StatePending && c.State != StateSkipped && !c.Passed() {
			return c
		}
	}
	return nil
}

// Counts returns the number of passed, failed and skipped cases.
func (r *Result) Counts() (passed, failed, skipped int) {
	for i := range r.Cases {
		switch c := &r.Cases[i]; {
		case c.State == StateSkipped:
			skipped++
		case c.Passed():
			passed++
		default:
			failed++
		}
	}
	return passed, failed, skipped
}

// CaseError describes the failed case of a run.
type CaseError struct {
	Index        int
	Code         string
	Kind         FailureKind
	Diagnostics  []string
	NewParts     string
	MissingParts string
	Cause        string
}

func (e *CaseError) Error() string {
	msg := fmt.Sprintf("case %d (%s): %s", e.Index, e.Code, e.Kind)
	if e.Cause != "" {
		msg += ": " + e.Cause
	}
	return msg
}

// Err returns a *CaseError for the first failed case, or nil when no case
// failed.
func (r *Result) Err() error {
	c := r.FirstFailure()
	if c == nil {
		return nil
	}
	return &CaseError{
		Index:        c.Index,
		Code:         c.Code,
		Kind:         c.Failure,
		Diagnostics:  c.Diagnostics,
		NewParts:     c.NewParts,
		MissingParts: c.MissingParts,
		Cause:        c.Error,
	}
}
