package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/phrazzld/scry-notes/internal/extract"
)

// DefaultDebounce is used when a Watcher is created with a non-positive
// debounce window.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Run on a closed Watcher.
var ErrClosed = errors.New("watcher closed")

// Batch is the set of paths touched during one debounce window.
type Batch struct {
	Changed []string
	Removed []string
}

// Empty reports whether the batch carries no path.
func (b Batch) Empty() bool {
	return len(b.Changed) == 0 && len(b.Removed) == 0
}

// Handler is called with every non-empty batch.
type Handler func(ctx context.Context, batch Batch) error

// Watcher watches note roots recursively.
type Watcher struct {
	fsw        *fsnotify.Watcher
	roots      []string
	files      map[string]struct{}
	extensions []string
	debounce   time.Duration
	logger     *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Watcher over roots. Directories are watched recursively,
// skipping hidden ones; a root naming a file watches that file only.
func New(roots, extensions []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if len(roots) == 0 {
		return nil, extract.ErrNoPaths
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw:        fsw,
		files:      make(map[string]struct{}),
		extensions: extensions,
		debounce:   debounce,
		logger:     logger.With(slog.String("component", "watcher")),
		closed:     make(chan struct{}),
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		w.roots = append(w.roots, abs)
		if !info.IsDir() {
			// Editors replace files on save, so watch the parent.
			w.files[abs] = struct{}{}
			if err := fsw.Add(filepath.Dir(abs)); err != nil {
				_ = fsw.Close()
				return nil, fmt.Errorf("failed to watch %s: %w", root, err)
			}
			continue
		}
		if err := w.addTree(abs); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// Roots returns the absolute roots being watched.
func (w *Watcher) Roots() []string {
	return slices.Clone(w.roots)
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Run delivers batches to h until ctx is cancelled or the Watcher is
// closed. Handler errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}

	pending := newBatcher()
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.closed:
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event, pending) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case <-timer.C:
			batch := pending.flush()
			if batch.Empty() {
				continue
			}
			w.logger.Debug("changes detected",
				slog.Int("changed", len(batch.Changed)),
				slog.Int("removed", len(batch.Removed)))
			if err := h(ctx, batch); err != nil {
				w.logger.Error("failed to handle changes", slog.String("error", err.Error()))
			}
		}
	}
}

// handleEvent records event in pending and reports whether it was relevant.
func (w *Watcher) handleEvent(event fsnotify.Event, pending *batcher) bool {
	path := filepath.Clean(event.Name)
	if hidden(filepath.Base(path)) || !w.under(path) {
		return false
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			// Gone again before we looked.
			pending.remove(path)
			return true
		}
		if info.IsDir() {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("failed to watch new directory",
					slog.String("dir", path),
					slog.String("error", err.Error()))
			}
			files, err := extract.Discover([]string{path}, w.extensions)
			if err != nil {
				return false
			}
			for _, f := range files {
				pending.change(f)
			}
			return len(files) > 0
		}
		if !w.wanted(path) {
			return false
		}
		pending.change(path)
		return true

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A renamed file shows up again as a create under its new name.
		pending.remove(path)
		return true
	}
	return false
}

// under reports whether path lies under a watched directory root or is a
// watched file root.
func (w *Watcher) under(path string) bool {
	if _, ok := w.files[path]; ok {
		return true
	}
	for _, root := range w.roots {
		if _, isFile := w.files[root]; isFile {
			continue
		}
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) wanted(path string) bool {
	if _, ok := w.files[path]; ok {
		return true
	}
	return extract.Matches(path, w.extensions)
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		err = w.fsw.Close()
	})
	return err
}

func hidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".")
}

// batcher accumulates paths; the latest event for a path wins.
type batcher struct {
	changed map[string]struct{}
	removed map[string]struct{}
}

func newBatcher() *batcher {
	return &batcher{changed: make(map[string]struct{}), removed: make(map[string]struct{})}
}

func (b *batcher) change(path string) {
	delete(b.removed, path)
	b.changed[path] = struct{}{}
}

func (b *batcher) remove(path string) {
	delete(b.changed, path)
	b.removed[path] = struct{}{}
}

func (b *batcher) flush() Batch {
	batch := Batch{
		Changed: sortedKeys(b.changed),
		Removed: sortedKeys(b.removed),
	}
	clear(b.changed)
	clear(b.removed)
	return batch
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
