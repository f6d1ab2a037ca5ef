package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/scadunit/internal/harness"
	"github.com/roach88/scadunit/internal/render"
	"github.com/roach88/scadunit/internal/store"
	"github.com/roach88/scadunit/internal/suite"
)

// SuiteOptions holds the flags that describe a suite.
type SuiteOptions struct {
	SuiteFile  string
	Name       string
	Library    string
	TestCases  []string
	Assertions []string
	Fn         int
}

func (o *SuiteOptions) addFlags(cmd *cobra.Command, casesFlag, casesUsage string) {
	cmd.Flags().StringVar(&o.SuiteFile, "suite", "", "suite file (.yaml, .yml or .cue)")
	cmd.Flags().StringVar(&o.Library, "library", "", "SCAD library under test")
	cmd.Flags().StringVar(&o.Name, "name", "", "suite name in reports and history (default: library basename)")
	cmd.Flags().StringVar(&o.Library, "scad-file-under-test", "", "alias for --library")
	cmd.Flags().StringArrayVar(&o.TestCases, casesFlag, nil, casesUsage)
	cmd.Flags().IntVar(&o.Fn, "fn", render.DefaultFn, "$fn resolution passed to the engine")
	_ = cmd.Flags().MarkHidden("scad-file-under-test")
}

// buildSuite loads the suite file, if any, and applies the flags on top.
// Cases given on the command line run after the file's cases.
func (o *SuiteOptions) buildSuite(cmd *cobra.Command) (*suite.Suite, error) {
	s := &suite.Suite{}
	if o.SuiteFile != "" {
		loaded, err := suite.Load(o.SuiteFile)
		if err != nil {
			return nil, err
		}
		s = loaded
	}

	if o.Library != "" {
		s.Library = o.Library
	}
	if o.Name != "" {
		s.Name = o.Name
	}
	if s.Name == "" && s.Library != "" {
		base := filepath.Base(s.Library)
		s.Name = base[:len(base)-len(filepath.Ext(base))]
	}

	cases, err := suite.ParseCases(o.TestCases)
	if err != nil {
		return nil, err
	}
	s.Cases = append(s.Cases, cases...)
	s.Assertions = append(s.Assertions, o.Assertions...)

	if cmd.Flags().Changed("fn") || s.Fn == 0 {
		s.Fn = o.Fn
	}
	if s.Fn <= 0 {
		return nil, fmt.Errorf("fn must be positive, got %d", s.Fn)
	}
	return s, nil
}

// watchedFiles returns the files whose change should rerun the suite.
func (o *SuiteOptions) watchedFiles(s *suite.Suite) []string {
	var files []string
	if s.Library != "" {
		files = append(files, s.Library)
	}
	if o.SuiteFile != "" {
		files = append(files, o.SuiteFile)
	}
	return files
}

// newEngine builds the engine for s. Explicitly set global flags win over
// the suite file.
func (o *RootOptions) newEngine(cmd *cobra.Command, s *suite.Suite, logger *slog.Logger) (*render.Engine, error) {
	eng := render.NewEngine(o.engineCommand(s.OpenSCAD), logger)
	eng.Fn = s.Fn

	timeout, err := s.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("timeout") {
		timeout = o.Timeout
	}
	eng.Timeout = timeout
	return eng, nil
}

// openRecorder opens the history database when --db is set. The returned
// close function is always safe to call.
func (o *RootOptions) openRecorder(logger *slog.Logger) (harness.Recorder, func(), error) {
	if o.Database == "" {
		return nil, func() {}, nil
	}
	st, err := store.Open(o.Database)
	if err != nil {
		return nil, nil, err
	}
	return st, func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}, nil
}

// WorkspaceOptions holds the scratch file flags.
type WorkspaceOptions struct {
	Workdir      string
	CodeFile     string
	RenderFile   string
	NewParts     string
	MissingParts string
}

func (o *WorkspaceOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Workdir, "workdir", "", "directory for scratch files (default: a new temp dir)")
	cmd.Flags().StringVar(&o.CodeFile, "scad-code-file", "", "path of the generated SCAD source")
	cmd.Flags().StringVar(&o.RenderFile, "render-stl", "", "path of the rendered mesh")
	cmd.Flags().StringVar(&o.NewParts, "new-parts-stl", "", "path of the new-geometry mesh")
	cmd.Flags().StringVar(&o.MissingParts, "missing-parts-stl", "", "path of the missing-geometry mesh")
}

// workspace returns the scratch files for a run. The workdir flag wins over
// the suite's workdir; with neither, a fresh temporary directory is created
// and returned as tmp so the caller can remove it.
func (o *WorkspaceOptions) workspace(s *suite.Suite) (ws harness.Workspace, tmp string, err error) {
	dir := o.Workdir
	if dir == "" {
		dir = s.Workdir
	}
	if dir == "" {
		tmp, err = os.MkdirTemp("", "scadunit-")
		if err != nil {
			return harness.Workspace{}, "", fmt.Errorf("create workdir: %w", err)
		}
		dir = tmp
	}

	ws = harness.NewWorkspace(dir)
	override := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	override(&ws.Code, o.CodeFile)
	override(&ws.Render, o.RenderFile)
	override(&ws.NewParts, o.NewParts)
	override(&ws.MissingParts, o.MissingParts)
	return ws, tmp, nil
}
