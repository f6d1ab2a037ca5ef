package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scadunit/internal/testutil"
)

func TestWatchCommand_RerunsOnChange(t *testing.T) {
	f := newCLIFixture(t)
	testutil.CubeMesh(t, f.dir, "cube3.stl", 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		_, err := f.runContext(ctx, t, out, "watch",
			"--library", "lib.scad",
			"--testcases", "cube(3)#cube3.stl",
			"--workdir", "work",
			"--debounce", "50ms",
		)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "run run-1 (test)")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "lib.scad"), []byte("module part(size) { cube(size + 1); }\n"), 0644))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "run run-2 (test)")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	assert.Equal(t, 2, strings.Count(out.String(), "PASS: 1 passed"))
}

func TestWatchCommand_InvalidSuite(t *testing.T) {
	f := newCLIFixture(t)

	// The deadline turns a watcher that starts anyway into a failure
	// instead of a hung test.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := f.runContext(ctx, t, nil, "watch", "--library", "lib.scad")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "at least one case or assertion is required")
	assert.NoError(t, ctx.Err(), "watch must exit before the deadline")
}
