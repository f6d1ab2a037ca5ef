package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scadunit/internal/harness"
	"github.com/roach88/scadunit/internal/suite"
	"github.com/roach88/scadunit/internal/testutil"
)

// newGoldie must be called before newCLIFixture changes the working directory.
func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join("testdata", "golden"))
	require.NoError(t, err)
	return goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestTestCommand_Pass(t *testing.T) {
	g := newGoldie(t)
	f := newCLIFixture(t)
	testutil.CubeMesh(t, f.dir, "cube3.stl", 3)

	out, err := f.run(t, "test",
		"--library", "lib.scad",
		"--testcases", "cube(3)#cube3.stl",
		"--assertion-check", "part(-1)",
		"--workdir", "work",
	)
	require.NoError(t, err)

	g.Assert(t, "test_pass", []byte(out))
}

func TestTestCommand_Differs(t *testing.T) {
	g := newGoldie(t)
	f := newCLIFixture(t)
	testutil.CubeMesh(t, f.dir, "cube3.stl", 3)

	out, err := f.run(t, "test",
		"--library", "lib.scad",
		"--testcases", "cube(4)#cube3.stl",
		"--assertion-check", "part(-1)",
		"--workdir", "work",
	)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var caseErr *harness.CaseError
	require.ErrorAs(t, err, &caseErr)
	assert.Equal(t, harness.EquivalenceFailure, caseErr.Kind)

	g.Assert(t, "test_differs", []byte(out))
	assert.FileExists(t, filepath.Join(f.dir, "work", "new_parts.stl"))
	assert.NoFileExists(t, filepath.Join(f.dir, "work", "missing_parts.stl"))
}

func TestTestCommand_ExplicitScratchFiles(t *testing.T) {
	f := newCLIFixture(t)
	testutil.CubeMesh(t, f.dir, "cube3.stl", 3)

	out, err := f.run(t, "test",
		"--scad-file-under-test", "lib.scad",
		"--testcases", "cube(1)#cube3.stl",
		"--scad-code-file", "scratch/code.scad",
		"--render-stl", "scratch/actual.stl",
		"--missing-parts-stl", "scratch/lost.stl",
		"--workdir", "work",
	)
	require.Error(t, err)
	assert.Contains(t, out, "missing parts: scratch/lost.stl")
	assert.FileExists(t, filepath.Join(f.dir, "scratch", "code.scad"))
	assert.FileExists(t, filepath.Join(f.dir, "scratch", "actual.stl"))
}

func TestTestCommand_SourcesUseAbsolutePaths(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "expected"), 0755))
	testutil.CubeMesh(t, f.dir, filepath.Join("expected", "cube3.stl"), 3)

	out, err := f.run(t, "test", "--library", "lib.scad",
		"--testcases", "cube(3)#expected/cube3.stl", "--workdir", "work")
	require.NoError(t, err, out)
	assert.Contains(t, out, "[ok] #0 mesh cube(3)")

	src, err := os.ReadFile(filepath.Join(f.dir, "work", "code.scad"))
	require.NoError(t, err)
	assert.Contains(t, string(src), `import("`+filepath.Join(f.dir, "expected", "cube3.stl")+`");`)
	assert.Contains(t, string(src), `import("`+filepath.Join(f.dir, "work", "render.stl")+`");`)
}

func TestTestCommand_CommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
		want    string
	}{
		{
			name:    "malformed case",
			args:    []string{"--library", "lib.scad", "--testcases", "cube(3)"},
			wantErr: suite.ErrMalformedCase,
		},
		{
			name:    "delimiter in snippet",
			args:    []string{"--library", "lib.scad", "--testcases", "echo(\"#\")#cube3.stl"},
			wantErr: suite.ErrMalformedCase,
		},
		{
			name: "no library",
			args: []string{"--testcases", "cube(3)#cube3.stl"},
			want: "library is required",
		},
		{
			name: "no cases",
			args: []string{"--library", "lib.scad"},
			want: "at least one case or assertion",
		},
		{
			name: "missing suite file",
			args: []string{"--suite", "missing.yaml"},
			want: "failed to read suite file",
		},
		{
			name: "positional argument",
			args: []string{"lib.scad"},
			want: "unknown command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCLIFixture(t)

			_, err := f.run(t, append([]string{"test"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestTestCommand_RenderFailures(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing library", []string{"--library", "nowhere.scad", "--testcases", "cube(3)#cube3.stl"}, "Can't open library"},
		{"unknown variable", []string{"--library", "lib.scad", "--testcases", "cube(undefined_var)#cube3.stl"}, "Ignoring unknown variable"},
		{"timeout", []string{"--library", "lib.scad", "--testcases", "hang()#cube3.stl", "--timeout", "200ms"}, "render timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCLIFixture(t)
			testutil.CubeMesh(t, f.dir, "cube3.stl", 3)

			out, err := f.run(t, append([]string{"test", "--workdir", "work"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, out, "render_failure")
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestTestCommand_AssertionMissing(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "test", "--library", "lib.scad", "--assertion-check", "cube(3)", "--workdir", "work")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "[FAIL] #0 assertion cube(3): assertion_expectation_failure")
}

func TestTestCommand_JSON(t *testing.T) {
	f := newCLIFixture(t)
	testutil.CubeMesh(t, f.dir, "cube3.stl", 3)

	out, err := f.run(t, "test", "--format", "json",
		"--library", "lib.scad", "--testcases", "cube(3)#cube3.stl", "--workdir", "work")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["pass"])
	assert.Equal(t, "test", data["command"])
}

func TestTestCommand_JSONFailure(t *testing.T) {
	f := newCLIFixture(t)
	testutil.CubeMesh(t, f.dir, "cube3.stl", 3)

	out, err := f.run(t, "test", "--format", "json",
		"--library", "lib.scad", "--testcases", "cube(2)#cube3.stl", "--workdir", "work")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFailure, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "equivalence_failure")
}

func TestTestCommand_SuiteFile(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "suites", "meshes"), 0755))
	testutil.CubeMesh(t, filepath.Join(f.dir, "suites", "meshes"), "cube2.stl", 2)
	testutil.Library(t, filepath.Join(f.dir, "suites"))

	yamlSuite := `name: cubes
library: lib.scad
fn: 24
workdir: ../work
cases:
  - code: "cube(2)"
    expected: meshes/cube2.stl
assertions:
  - "part(-1)"
`
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "suites", "cubes.yaml"), []byte(yamlSuite), 0644))

	out, err := f.run(t, "test", "--suite", "suites/cubes.yaml", "--testcases", "cube(2)#suites/meshes/cube2.stl")
	require.NoError(t, err)
	assert.Contains(t, out, "suite=cubes")
	assert.Contains(t, out, "PASS: 3 passed, 0 failed, 0 skipped")
	assert.FileExists(t, filepath.Join(f.dir, "work", "code.scad"))
}

func TestTestCommand_CUESuite(t *testing.T) {
	f := newCLIFixture(t)
	testutil.CubeMesh(t, f.dir, "cube5.stl", 5)

	cueSuite := `library: "lib.scad"
workdir: "work"
cases: [{code: "cube(5)", expected: "cube5.stl"}]
`
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "cubes.cue"), []byte(cueSuite), 0644))

	out, err := f.run(t, "test", "--suite", "cubes.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS: 1 passed")
}

func TestTestCommand_RecordsHistory(t *testing.T) {
	f := newCLIFixture(t)
	testutil.CubeMesh(t, f.dir, "cube3.stl", 3)

	_, err := f.run(t, "test", "--db", "history.db",
		"--library", "lib.scad", "--testcases", "cube(3)#cube3.stl", "--workdir", "work")
	require.NoError(t, err)
	_, err = f.run(t, "test", "--db", "history.db",
		"--library", "lib.scad", "--testcases", "cube(1)#cube3.stl", "--workdir", "work")
	require.Error(t, err)

	out, err := f.run(t, "history", "--db", "history.db")
	require.NoError(t, err)
	assert.Contains(t, out, "run-2  test   FAIL  lib")
	assert.Contains(t, out, "run-1  test   PASS  lib")
}

func TestTestCommand_ReportFile(t *testing.T) {
	f := newCLIFixture(t)
	testutil.CubeMesh(t, f.dir, "cube3.stl", 3)

	_, err := f.run(t, "test", "--library", "lib.scad",
		"--testcases", "cube(3)#cube3.stl", "--workdir", "work", "--report", "report.json")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(f.dir, "report.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "}\n"))

	var rep map[string]any
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "run-1", rep["run_id"])
	assert.Equal(t, true, rep["pass"])
}

func TestTestCommand_TempWorkdir(t *testing.T) {
	f := newCLIFixture(t)
	tmp := filepath.Join(f.dir, "tmp")
	require.NoError(t, os.Mkdir(tmp, 0755))
	t.Setenv("TMPDIR", tmp)
	testutil.CubeMesh(t, f.dir, "cube3.stl", 3)

	_, err := f.run(t, "test", "--library", "lib.scad", "--testcases", "cube(3)#cube3.stl")
	require.NoError(t, err)
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "a passing run removes its temp workdir")

	_, err = f.run(t, "test", "--library", "lib.scad", "--testcases", "cube(4)#cube3.stl")
	require.Error(t, err)
	entries, err = os.ReadDir(tmp)
	require.NoError(t, err)
	require.Len(t, entries, 1, "a failing run keeps its temp workdir")
	assert.FileExists(t, filepath.Join(tmp, entries[0].Name(), "new_parts.stl"))
}
