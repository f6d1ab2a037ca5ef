package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// startWatcher runs w until the test ends and returns a channel of changes.
func startWatcher(t *testing.T, paths []string) <-chan []string {
	t.Helper()

	changes := make(chan []string, 16)
	w, err := New(paths, func(_ context.Context, changed []string) {
		changes <- changed
	}, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	return changes
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func waitChange(t *testing.T, changes <-chan []string) []string {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
		return nil
	}
}

func TestWatcher_ReportsChange(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib.scad")
	writeFile(t, lib, "module a() {}\n")

	changes := startWatcher(t, []string{lib})
	writeFile(t, lib, "module b() {}\n")

	got := waitChange(t, changes)
	abs, err := filepath.Abs(lib)
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, got)
}

func TestWatcher_CoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib.scad")
	writeFile(t, lib, "")

	changes := startWatcher(t, []string{lib})
	for i := 0; i < 5; i++ {
		writeFile(t, lib, "cube(1);\n")
	}

	waitChange(t, changes)
	select {
	case c := <-changes:
		t.Fatalf("burst reported twice, second change %v", c)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib.scad")
	other := filepath.Join(dir, "notes.txt")
	writeFile(t, lib, "")

	changes := startWatcher(t, []string{lib})
	writeFile(t, other, "unrelated\n")

	select {
	case c := <-changes:
		t.Fatalf("unexpected change %v", c)
	case <-time.After(300 * time.Millisecond):
	}

	writeFile(t, lib, "cube(2);\n")
	got := waitChange(t, changes)
	require.Len(t, got, 1)
	assert.Equal(t, "lib.scad", filepath.Base(got[0]))
}

func TestWatcher_SeveralFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.scad")
	b := filepath.Join(dir, "sub", "b.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(b), 0755))
	writeFile(t, a, "")
	writeFile(t, b, "")

	changes := startWatcher(t, []string{a, b})
	writeFile(t, b, "cases: []\n")

	got := waitChange(t, changes)
	require.Len(t, got, 1)
	assert.Equal(t, "b.yaml", filepath.Base(got[0]))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, func(context.Context, []string) {})
	assert.Error(t, err)

	_, err = New([]string{filepath.Join(t.TempDir(), "missing", "lib.scad")}, func(context.Context, []string) {})
	assert.Error(t, err)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{filepath.Join(dir, "b.scad"), filepath.Join(dir, "a.scad")}, func(context.Context, []string) {})
	require.NoError(t, err)
	t.Cleanup(func() { w.fsw.Close() })

	files := w.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "a.scad", filepath.Base(files[0]))
}
