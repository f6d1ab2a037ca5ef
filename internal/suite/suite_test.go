package suite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gears.yaml", `
library: lib/gears.scad
fn: 64
timeout: 30s
workdir: build
cases:
  - code: "gear(10)"
    expected: testdata/gear10.stl
  - code: "gear(12)"
    expected: /abs/gear12.stl
assertions:
  - "gear(-1)"
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gears", s.Name, "name defaults to the file name")
	assert.Equal(t, filepath.Join(dir, "lib/gears.scad"), s.Library)
	assert.Equal(t, filepath.Join(dir, "build"), s.Workdir)
	assert.Equal(t, 64, s.Fn)
	require.Len(t, s.Cases, 2)
	assert.Equal(t, Case{Code: "gear(10)", Expected: filepath.Join(dir, "testdata/gear10.stl")}, s.Cases[0])
	assert.Equal(t, "/abs/gear12.stl", s.Cases[1].Expected, "absolute paths are kept")
	assert.Equal(t, []string{"gear(-1)"}, s.Assertions)

	d, err := s.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
	assert.NoError(t, s.Validate())
}

func TestLoadYAML_UnknownField(t *testing.T) {
	path := writeFile(t, t.TempDir(), "typo.yml", `
library: lib.scad
case:
  - code: "cube(1)"
    expected: cube1.stl
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadYAML_InvalidCase(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", `
library: lib.scad
cases:
  - code: "cube(1)"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cases[0]: expected mesh is required")
}

func TestLoadYAML_InvalidTimeout(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "library: lib.scad\ntimeout: soon\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timeout")
}

func TestLoadCUE(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "suite.cue", `
name:    "brackets"
library: "brackets.scad"
timeout: "2m"
cases: [
	{code: "bracket(3)", expected: "expected/bracket3.stl"},
]
assertions: ["bracket(0)"]
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "brackets", s.Name)
	assert.Equal(t, filepath.Join(dir, "brackets.scad"), s.Library)
	require.Len(t, s.Cases, 1)
	assert.Equal(t, filepath.Join(dir, "expected/bracket3.stl"), s.Cases[0].Expected)
	assert.Equal(t, []string{"bracket(0)"}, s.Assertions)

	d, err := s.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)
}

func TestLoadCUE_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative fn", `library: "a.scad", fn: -1`},
		{"unknown field", `library: "a.scad", extra: true`},
		{"empty code", `library: "a.scad", cases: [{code: "", expected: "a.stl"}]`},
		{"missing expected", `library: "a.scad", cases: [{code: "cube(1)"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "suite.cue", tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadCUE_SyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "suite.cue", `library: "a.scad" cases: [`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse CUE")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("suite.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported suite file extension")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read suite file")
}

func TestSuiteValidate(t *testing.T) {
	s := &Suite{}
	assert.EqualError(t, s.Validate(), "library is required")

	s.Library = "lib.scad"
	assert.EqualError(t, s.Validate(), "at least one case or assertion is required")

	s.Assertions = []string{"part(-1)"}
	assert.NoError(t, s.Validate())

	s.Timeout = "-1s"
	assert.Error(t, s.Validate())
}
