package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/scadunit/internal/harness"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with one equivalent case and, when pass is
// false, a second case that differs.
func createTestRun(id, suite string, pass bool) *harness.Result {
	r := &harness.Result{
		RunID:   id,
		Command: "test",
		Suite:   suite,
		Library: "lib.scad",
		Pass:    pass,
		Cases: []harness.CaseResult{
			{Index: 0, Kind: harness.KindMesh, Code: "cube(3)", Expected: "cube3.stl", State: harness.StateEquivalent},
		},
	}
	if !pass {
		r.Cases = append(r.Cases, harness.CaseResult{
			Index:    1,
			Kind:     harness.KindMesh,
			Code:     "cube(4)",
			Expected: "cube3.stl",
			State:    harness.StateDiffers,
			Failure:  harness.EquivalenceFailure,
			NewParts: "work/new_parts.stl",
		})
	}
	return r
}
