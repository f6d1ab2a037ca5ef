// Package harness runs scadunit test suites.
//
// A suite holds two kinds of cases. Mesh cases render a snippet against the
// library under test and compare the resulting mesh with an expected mesh.
// Assertion cases render a snippet that must trip an assert() in the
// library. Cases run one at a time in suite order; the first failing case
// stops the run and the remaining cases are marked skipped.
//
// # Case States
//
//	pending ──► rendered ──► equivalent      (mesh case passed)
//	   │            ├──────► differs         (mesh case failed)
//	   │            ├──────► asserted        (assertion case passed)
//	   │            └──────► no_assertion    (assertion case failed)
//	   ├──────► render_failed
//	   └──────► skipped
//
// # Scratch Files
//
// A Workspace names the four files a run reuses for every case: the SCAD
// source handed to the engine, the rendered mesh and the two diagnostic
// meshes (new parts, missing parts). They are overwritten from case to case,
// so suites running side by side need separate workspaces.
//
// # Usage
//
//	eng := render.NewEngine("openscad", logger)
//	h := harness.New(eng, oracle.NewDifference(eng, logger), harness.WithLogger(logger))
//	result, err := h.Run(ctx, s, harness.NewWorkspace(dir))
//	if err != nil {
//	    return err
//	}
//	if !result.Pass {
//	    failed := result.FirstFailure()
//	    log.Printf("case %d failed: %s", failed.Index, failed.Failure)
//	}
package harness
