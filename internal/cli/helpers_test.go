package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/roach88/scadunit/internal/testutil"
)

// cliFixture is a temp working directory holding a library and a fake engine.
// Tests run from inside it so paths in the output are relative.
type cliFixture struct {
	dir    string
	engine string
	opts   *RootOptions
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.Library(t, dir)

	return &cliFixture{
		dir:    dir,
		engine: testutil.FakeEngine(t),
		opts: &RootOptions{
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
			IDs:    testutil.NewFixedIDGenerator("run-1", "run-2", "run-3"),
		},
	}
}

// run executes the root command with args, passing the fake engine.
func (f *cliFixture) run(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()
	return f.runContext(context.Background(), t, nil, args...)
}

func (f *cliFixture) runContext(ctx context.Context, t *testing.T, out io.Writer, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(f.opts)
	buf := &bytes.Buffer{}
	if out == nil {
		out = buf
	}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--openscad", f.engine))
	cmd.SetContext(ctx)
	err := execute(cmd)
	return buf.String(), err
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
