// Package watch reruns a callback when watched files change.
//
// The directories of the watched files are observed rather than the files
// themselves, so editors that save by renaming a temp file still trigger a
// change. Events for other files in those directories are dropped. Bursts
// of events are coalesced: the callback runs once the watched files have
// been quiet for the debounce interval.
package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet interval before a change is reported.
const DefaultDebounce = 300 * time.Millisecond

// ChangeFunc is called with the changed files, sorted.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher watches a fixed set of files.
type Watcher struct {
	fsw      *fsnotify.Watcher
	files    map[string]struct{}
	onChange ChangeFunc
	debounce time.Duration
	logger   *slog.Logger

	// pending maps a changed file to the time of its latest event.
	pending map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet interval. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// New starts watching the directories of paths. The returned Watcher does
// nothing until Run is called; Run releases the underlying watcher.
func New(paths []string, onChange ChangeFunc, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("watch: no files to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		files:    make(map[string]struct{}, len(paths)),
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Debug("watching directory", "dir", dir)
	}

	return w, nil
}

// Files returns the absolute paths of the watched files, sorted.
func (w *Watcher) Files() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Run delivers changes to the callback until ctx is done. The callback runs
// on the Run goroutine, so events arriving during a callback are batched
// into the next one.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case now := <-ticker.C:
			if changed := w.due(now); len(changed) > 0 {
				w.logger.Info("files changed", "files", changed)
				w.onChange(ctx, changed)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	if _, ok := w.files[name]; !ok {
		return
	}
	w.logger.Debug("file event", "file", name, "op", event.Op.String())
	w.pending[name] = time.Now()
}

// due removes and returns the pending files quiet since the debounce interval.
func (w *Watcher) due(now time.Time) []string {
	var out []string
	for name, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			out = append(out, name)
			delete(w.pending, name)
		}
	}
	slices.Sort(out)
	return out
}
