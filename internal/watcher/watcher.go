// Package watcher watches the persisted index artifacts and triggers a
// store reload when a rebuild lands on disk. Writes to the artifact pair
// are debounced so a reload fires once per rebuild, not once per write.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 2 * time.Second

// ArtifactWatcher watches the directories holding the artifact pair and
// invokes onReload after changes settle.
type ArtifactWatcher struct {
	paths    map[string]bool // absolute artifact paths to react to
	dirs     []string
	onReload func()
	debounce time.Duration

	watcher  *fsnotify.Watcher
	timer    *time.Timer
	mu       sync.Mutex
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// Option configures an ArtifactWatcher.
type Option func(*ArtifactWatcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *ArtifactWatcher) { w.logger = l }
}

// WithDebounce overrides the settle delay before onReload fires.
func WithDebounce(d time.Duration) Option {
	return func(w *ArtifactWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewArtifactWatcher creates a watcher over the given artifact paths.
// onReload runs on the watcher goroutine after any of them changes.
func NewArtifactWatcher(artifactPaths []string, onReload func(), opts ...Option) *ArtifactWatcher {
	w := &ArtifactWatcher{
		paths:    make(map[string]bool, len(artifactPaths)),
		onReload: onReload,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	dirSeen := map[string]bool{}
	for _, p := range artifactPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		w.paths[abs] = true
		dir := filepath.Dir(abs)
		if !dirSeen[dir] {
			dirSeen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is
// called. The artifact directories must exist.
func (w *ArtifactWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	for _, dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			w.mu.Unlock()
			return err
		}
	}
	w.watcher = watcher
	w.started = true
	w.logger.Debug("artifact watcher started", zap.Strings("dirs", w.dirs))
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

func (w *ArtifactWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("artifact watcher error", zap.Error(err))
			}
		}
	}
}

func (w *ArtifactWatcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		abs = ev.Name
	}
	if !w.matches(abs) {
		return
	}
	w.logger.Debug("artifact changed", zap.String("path", abs), zap.String("op", ev.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		w.onReload()
	})
}

// matches covers the artifact itself plus SQLite sidecar files, whose
// writes also signal a rebuild.
func (w *ArtifactWatcher) matches(abs string) bool {
	if w.paths[abs] {
		return true
	}
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if trimmed, ok := cutSuffix(abs, suffix); ok && w.paths[trimmed] {
			return true
		}
	}
	return false
}

func cutSuffix(s, suffix string) (string, bool) {
	if len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix {
		return s[:len(s)-len(suffix)], true
	}
	return s, false
}

// Stop stops watching. Safe to call more than once.
func (w *ArtifactWatcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		close(w.done)
		if w.timer != nil {
			w.timer.Stop()
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.started = false
	})
}
