// Package watch reports files that settle in a directory tree.
//
// Events from fsnotify are filtered through a storage.FileSelector and
// debounced per path, so a file that is written in several chunks is
// reported once after the last write.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gobeaver/fgen/storage"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Root is the directory to watch.
	Root string

	// Pattern is a glob matched against the file name, or against the
	// slash separated path below Root when it contains a "/". Empty
	// matches every file.
	Pattern string

	// Debounce is how long a path must stay quiet before it is reported.
	Debounce time.Duration

	// Recursive also watches sub-directories, including ones created later.
	Recursive bool

	Logger *slog.Logger
}

// HandlerFunc receives the slash separated path of a settled file,
// relative to Root.
type HandlerFunc func(ctx context.Context, path string) error

// Watcher monitors a directory for new and changed files.
type Watcher struct {
	watcher   *fsnotify.Watcher
	root      string
	selector  storage.FileSelector
	debounce  time.Duration
	recursive bool
	logger    *slog.Logger

	// OnError is called for handler failures and watcher errors.
	OnError func(path string, err error)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a watcher for cfg.Root.
func New(cfg Config) (*Watcher, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, storage.ErrNotExist)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:   fsWatcher,
		root:      root,
		selector:  storage.All(),
		debounce:  cfg.Debounce,
		recursive: cfg.Recursive,
		logger:    cfg.Logger,
		timers:    make(map[string]*time.Timer),
	}
	if cfg.Pattern != "" && cfg.Pattern != "*" {
		w.selector = storage.Glob(cfg.Pattern)
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}

	if err := w.add(root, cfg.Recursive); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) add(dir string, recursive bool) error {
	if !recursive {
		return w.watcher.Add(dir)
	}
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.watcher.Add(p); err != nil {
				return fmt.Errorf("failed to watch %s: %w", p, err)
			}
		}
		return nil
	})
}

// Run delivers settled files to fn until ctx is cancelled. Calls to fn are
// made one at a time.
func (w *Watcher) Run(ctx context.Context, fn HandlerFunc) error {
	settled := make(chan string)
	done := make(chan struct{})
	defer func() {
		close(done)
		w.stopTimers()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rel := <-settled:
			if err := fn(ctx, rel); err != nil {
				w.reportError(rel, err)
			}

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, settled, done)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.reportError("", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, settled chan<- string, done <-chan struct{}) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && w.recursive {
			if err := w.add(event.Name, true); err != nil {
				w.reportError(event.Name, err)
			}
		}
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	fi := &storage.FileInfo{Name: filepath.Base(rel), Path: rel, Size: info.Size(), ModTime: info.ModTime()}
	if !w.selector.Match(fi) {
		return
	}

	w.schedule(rel, settled, done)
}

// schedule (re)starts the quiet period of rel.
func (w *Watcher) schedule(rel string, settled chan<- string, done <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.timers[rel]; exists {
		timer.Stop()
	}
	w.timers[rel] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, rel)
		w.mu.Unlock()

		select {
		case settled <- rel:
		case <-done:
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for rel, timer := range w.timers {
		timer.Stop()
		delete(w.timers, rel)
	}
}

func (w *Watcher) reportError(path string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	w.logger.Warn("watch error", "path", path, "error", err)
	if w.OnError != nil {
		w.OnError(path, err)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
