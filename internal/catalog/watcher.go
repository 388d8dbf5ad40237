package catalog

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hugo-lorenzo-mato/rolechain/internal/logging"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a catalog directory into a sink whenever its files change.
type Watcher struct {
	dir      string
	sink     Sink
	logger   *logging.Logger
	debounce time.Duration

	mu       sync.Mutex
	onReload func(*Catalog, error)
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, sink Sink, logger *logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		dir:      dir,
		sink:     sink,
		logger:   logger.With("component", "catalog", "dir", dir),
		debounce: DefaultDebounce,
	}
}

// SetDebounce changes the reload delay.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// OnReload registers a callback invoked after every reload attempt.
func (w *Watcher) OnReload(fn func(*Catalog, error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// Reload loads the directory once and syncs it into the sink.
func (w *Watcher) Reload(ctx context.Context) (*Catalog, error) {
	c, err := LoadDir(w.dir)
	if err == nil {
		err = c.Sync(ctx, w.sink)
	}

	w.mu.Lock()
	fn := w.onReload
	w.mu.Unlock()
	if fn != nil {
		fn(c, err)
	}

	if err != nil {
		return nil, err
	}
	w.logger.Info("catalog loaded", "roles", len(c.Roles), "templates", len(c.Templates))
	return c, nil
}

// Run performs an initial load, then reloads on changes until ctx is done.
// A bad file is logged and left for the next change to fix.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return fmt.Errorf("creating catalog dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	if _, err := w.Reload(ctx); err != nil {
		w.logger.Warn("initial catalog load failed", "error", err)
	}

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !IsCatalogFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("catalog file changed", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			if _, err := w.Reload(ctx); err != nil {
				w.logger.Warn("catalog reload failed", "error", err)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}
