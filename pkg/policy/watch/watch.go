// Package watch drives hot-reload: it watches a policy directory for
// filesystem changes, debounces them into a single quiet-period trigger,
// and reloads+publishes through the Loader and Index. Grounded on
// pkg/policy/manager's FileWatcher/Debouncer pair, generalized with an
// explicit single in-flight reload guard and exactly-one pending
// follow-up so a burst of filesystem events never queues more than one
// extra reload.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"aegis-hq/aegis/pkg/policy/ast"
	"aegis-hq/aegis/pkg/policy/index"
	"aegis-hq/aegis/pkg/policy/loader"
)

// DefaultQuietPeriod is the default debounce window.
const DefaultQuietPeriod = 300 * time.Millisecond

// Watcher is the Watcher component (C).
type Watcher struct {
	dir         string
	quietPeriod time.Duration
	idx         *index.Index
	logger      *slog.Logger
	onReloadErr func(error)

	fsw *fsnotify.Watcher

	mu            sync.Mutex
	timer         *time.Timer
	reloading     bool
	pendingReload bool

	warningsMu sync.Mutex
	warnings   []ast.LoadWarning

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Watcher over dir, publishing new snapshots to idx.
// onReloadErr is called (non-blocking, from the reload goroutine) whenever
// a reload fails; it should forward to the telemetry sink.
func New(dir string, quietPeriod time.Duration, idx *index.Index, logger *slog.Logger, onReloadErr func(error)) (*Watcher, error) {
	if quietPeriod <= 0 {
		quietPeriod = DefaultQuietPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	if onReloadErr == nil {
		onReloadErr = func(error) {}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		dir:         dir,
		quietPeriod: quietPeriod,
		idx:         idx,
		logger:      logger,
		onReloadErr: onReloadErr,
		fsw:         fsw,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start watches the directory until ctx is cancelled or Stop is called.
// Blocking; run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch policy directory %s: %w", w.dir, err)
	}
	defer close(w.doneCh)

	w.logger.Info("policy watcher started", "dir", w.dir, "quiet_period_ms", w.quietPeriod.Milliseconds())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed")
			}
			if !w.shouldProcess(event) {
				continue
			}
			w.logger.Debug("policy file event", "path", event.Name, "op", event.Op.String())
			w.debounce()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed")
			}
			w.logger.Error("policy watcher error", "error", err)
		}
	}
}

// Stop halts watching. Safe to call once.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	return w.fsw.Close()
}

func (w *Watcher) shouldProcess(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}

// debounce resets the single quiet-period timer; only the last event in a
// burst survives, never a queue of pending reloads.
func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.quietPeriod, w.scheduleReload)
}

// scheduleReload starts a reload if none is in flight, or marks exactly
// one follow-up reload if one already is.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	if w.reloading {
		w.pendingReload = true
		w.mu.Unlock()
		return
	}
	w.reloading = true
	w.mu.Unlock()

	go w.runReloadLoop()
}

func (w *Watcher) runReloadLoop() {
	for {
		w.reload()

		w.mu.Lock()
		if w.pendingReload {
			w.pendingReload = false
			w.mu.Unlock()
			continue
		}
		w.reloading = false
		w.mu.Unlock()
		return
	}
}

// reload performs one load+publish cycle. On failure the previous
// snapshot remains published; the error is surfaced via onReloadErr, never
// returned to a caller.
func (w *Watcher) reload() {
	set, warnings, err := loader.Load(w.dir)
	if err != nil {
		w.logger.Error("policy reload failed, retaining previous snapshot", "error", err)
		w.onReloadErr(err)
		return
	}

	for _, warning := range warnings {
		w.logger.Warn("policy load warning", "source", warning.SourcePath, "message", warning.Message)
	}

	w.warningsMu.Lock()
	w.warnings = warnings
	w.warningsMu.Unlock()

	w.idx.Swap(set)
	w.logger.Info("policy reloaded", "fingerprint", set.VersionFingerprint, "agents", len(set.Agents))
}

// Warnings returns the warnings produced by the most recent successful
// load, for admin introspection.
func (w *Watcher) Warnings() []ast.LoadWarning {
	w.warningsMu.Lock()
	defer w.warningsMu.Unlock()
	return w.warnings
}

// SetInitialWarnings records the warnings from the initial, pre-watch load
// so Warnings() reflects them before the first filesystem event arrives.
func (w *Watcher) SetInitialWarnings(warnings []ast.LoadWarning) {
	w.warningsMu.Lock()
	w.warnings = warnings
	w.warningsMu.Unlock()
}
