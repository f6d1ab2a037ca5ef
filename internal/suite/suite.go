// Package suite describes what a scadunit run tests.
//
// A suite names the SCAD library under test, the mesh cases (snippet plus
// expected mesh) and the assertion checks (snippets that must trip an
// assert()). Suites come from command-line flags, YAML files or CUE files.
//
// # YAML Format
//
//	name: gears
//	library: lib/gears.scad
//	fn: 50
//	openscad: /usr/bin/openscad
//	timeout: 30s
//	workdir: build/gears
//	cases:
//	  - code: "gear(10)"
//	    expected: testdata/gear10.stl
//	assertions:
//	  - "gear(-1)"
//
// CUE files carry the same fields and are checked against an embedded
// schema. Relative paths resolve against the directory of the suite file.
package suite

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Suite is a set of cases run against one library.
type Suite struct {
	// Name identifies the suite in logs and history.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Library is the SCAD file under test, loaded with use<>.
	Library string `yaml:"library,omitempty" json:"library,omitempty"`

	// Fn overrides the engine $fn resolution.
	Fn int `yaml:"fn,omitempty" json:"fn,omitempty"`

	// OpenSCAD overrides the engine command.
	OpenSCAD string `yaml:"openscad,omitempty" json:"openscad,omitempty"`

	// Timeout bounds each render, as a Go duration string.
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Workdir holds the scratch files of the run.
	Workdir string `yaml:"workdir,omitempty" json:"workdir,omitempty"`

	// Cases are compared against their expected meshes in order.
	Cases []Case `yaml:"cases,omitempty" json:"cases,omitempty"`

	// Assertions are snippets that must raise an engine assertion.
	Assertions []string `yaml:"assertions,omitempty" json:"assertions,omitempty"`
}

// Load reads a suite file, choosing the decoder by extension.
func Load(path string) (*Suite, error) {
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".cue":
		return LoadCUE(path)
	default:
		return nil, fmt.Errorf("unsupported suite file extension %q (want .yaml, .yml or .cue)", ext)
	}
}

// LoadYAML reads and parses a YAML suite file.
// Unknown fields are rejected so typos do not silently drop cases.
func LoadYAML(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	var s Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return finish(&s, path)
}

// LoadCUE reads a CUE suite file and unifies it with the suite schema.
func LoadCUE(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("building suite schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Suite")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("suite does not match schema: %w", err)
	}

	var s Suite
	if err := unified.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding suite: %w", err)
	}

	return finish(&s, path)
}

func finish(s *Suite, path string) (*Suite, error) {
	if s.Name == "" {
		base := filepath.Base(path)
		s.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	s.resolvePaths(filepath.Dir(path))

	if err := s.validateEntries(); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return s, nil
}

// resolvePaths makes relative file paths relative to baseDir.
func (s *Suite) resolvePaths(baseDir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	s.Library = resolve(s.Library)
	s.Workdir = resolve(s.Workdir)
	for i := range s.Cases {
		s.Cases[i].Expected = resolve(s.Cases[i].Expected)
	}
}

// TimeoutDuration parses Timeout. An empty Timeout is zero.
func (s *Suite) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", s.Timeout)
	}
	return d, nil
}

// Validate checks that the suite is complete enough to run: it names a
// library and holds at least one case or assertion.
func (s *Suite) Validate() error {
	if s.Library == "" {
		return errors.New("library is required")
	}
	if len(s.Cases) == 0 && len(s.Assertions) == 0 {
		return errors.New("at least one case or assertion is required")
	}
	return s.validateEntries()
}

func (s *Suite) validateEntries() error {
	if s.Fn < 0 {
		return fmt.Errorf("fn must be positive, got %d", s.Fn)
	}
	if _, err := s.TimeoutDuration(); err != nil {
		return err
	}
	for i, c := range s.Cases {
		if err := c.validate(); err != nil {
			return fmt.Errorf("cases[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("assertions[%d]: code is required", i)
		}
	}
	return nil
}
