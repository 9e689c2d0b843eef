// Package watcher implements the recursive filesystem observer of
// spec.md §4.11 (C11): debounced fsnotify events drive the incremental
// updater and invalidate the blueprint cache for every changed path.
// Grounded on the teacher's internal/indexing.FileWatcher (fsnotify
// directory walk, ctx/cancel lifecycle, debounced event batching,
// WatchStats counters) and
// original_source/src/cerberus/watcher/filesystem_monitor.py
// (debounce-then-git-diff-then-update flow, events_processed/
// updates_triggered counters).
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/proxikal/cerberus/internal/blueprint"
	"github.com/proxikal/cerberus/internal/gitutil"
	"github.com/proxikal/cerberus/internal/incremental"
	"github.com/proxikal/cerberus/internal/store"
)

// Stats mirrors filesystem_monitor.py's events_processed/updates_triggered
// counters, surfaced by the daemon's GET /status (spec.md §4.10).
type Stats struct {
	EventsProcessed  int64
	UpdatesTriggered int64
	LastEventTime    time.Time
	LastUpdateTime   time.Time
}

// Options configures debounce delay and path filtering, sourced from
// internal/config.Watcher and Config.Include/Exclude.
type Options struct {
	DebounceDelay time.Duration
	Include       []string
	Exclude       []string
}

// defaultIgnoredDirs mirrors MONITORING_CONFIG's ignore_patterns from
// watcher/config.py, narrowed to directory basenames since the walk
// already skips entire subtrees.
var defaultIgnoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	"build":        true,
	"dist":         true,
	".cerberus":    true,
}

// Watcher observes root recursively, debounces events, and on a quiet
// period invokes the incremental updater and invalidates the blueprint
// cache for every path git reports as changed.
type Watcher struct {
	root     string
	opts     Options
	fsw      *fsnotify.Watcher
	updater  *incremental.Updater
	git      *gitutil.Provider
	store    *store.Store
	cache    *blueprint.Cache
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	debouncer *debouncer

	statsMu sync.RWMutex
	stats   Stats
}

// New builds a Watcher. cache may be nil if blueprint caching is
// disabled, in which case invalidation is a no-op.
func New(root string, opts Options, updater *incremental.Updater, git *gitutil.Provider, s *store.Store, cache *blueprint.Cache, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = 2 * time.Second
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		root:    root,
		opts:    opts,
		fsw:     fsw,
		updater: updater,
		git:     git,
		store:   s,
		cache:   cache,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	w.debouncer = newDebouncer(opts.DebounceDelay, w.onQuiet)
	return w, nil
}

// Start adds recursive watches under root and begins processing events.
func (w *Watcher) Start() error {
	if err := w.addWatches(w.root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.processEvents()
	w.log.Info("watcher started", zap.String("root", w.root))
	return nil
}

// Stop cancels the context, closes the fsnotify handle, and waits for
// the event-processing goroutine to exit — the watcher half of §4.10's
// SIGTERM shutdown sequence ("stop watcher" before closing the server).
func (w *Watcher) Stop() {
	w.cancel()
	w.fsw.Close()
	w.debouncer.stop()
	w.wg.Wait()
	w.log.Info("watcher stopped",
		zap.Int64("events_processed", w.Stats().EventsProcessed),
		zap.Int64("updates_triggered", w.Stats().UpdatesTriggered))
}

// Stats returns a snapshot of the event/update counters.
func (w *Watcher) Stats() Stats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return w.stats
}

func (w *Watcher) addWatches(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (defaultIgnoredDirs[d.Name()] || w.matchesExclude(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Warn("failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func (w *Watcher) matchesExclude(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	for _, pattern := range w.opts.Exclude {
		if matched, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldProcess(path string) bool {
	if len(w.opts.Include) == 0 {
		return true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.opts.Include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)
	if statErr == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !w.matchesExclude(event.Name) {
			if err := w.fsw.Add(event.Name); err != nil {
				w.log.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
		}
		return
	}
	if w.matchesExclude(event.Name) || !w.shouldProcess(event.Name) {
		return
	}

	w.statsMu.Lock()
	w.stats.EventsProcessed++
	w.stats.LastEventTime = time.Now()
	w.statsMu.Unlock()

	w.debouncer.touch()
}

// onQuiet runs after the debounce window has elapsed with no further
// events: diff against the last indexed commit, invalidate the
// blueprint cache for every changed path, then run the incremental
// updater. Errors are logged, never fatal — a failed update just means
// the next filesystem event retries.
func (w *Watcher) onQuiet() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if w.git != nil && w.cache != nil {
		w.invalidateChangedBlueprints(ctx)
	}

	result, err := w.updater.Run(ctx)
	if err != nil {
		w.log.Warn("incremental update failed", zap.Error(err))
		return
	}
	if result.AddedFiles == 0 && result.ModifiedFiles == 0 && result.DeletedFiles == 0 {
		return
	}

	w.statsMu.Lock()
	w.stats.UpdatesTriggered++
	w.stats.LastUpdateTime = time.Now()
	w.statsMu.Unlock()

	w.log.Info("incremental update triggered by watcher",
		zap.Int("added", result.AddedFiles),
		zap.Int("modified", result.ModifiedFiles),
		zap.Int("deleted", result.DeletedFiles))
}

func (w *Watcher) invalidateChangedBlueprints(ctx context.Context) {
	priorCommit, ok, err := w.store.GetMetadata(ctx, "git_commit")
	if err != nil || !ok {
		return
	}
	changes, err := w.git.DiffAgainst(ctx, priorCommit)
	if err != nil {
		w.log.Debug("git diff failed, skipping blueprint cache invalidation", zap.Error(err))
		return
	}
	var changed []string
	changed = append(changed, changes.Added...)
	changed = append(changed, changes.Deleted...)
	for _, mf := range changes.Modified {
		changed = append(changed, mf.Path)
	}
	for _, rel := range changed {
		abs := filepath.Join(w.root, rel)
		if err := w.cache.Invalidate(ctx, abs); err != nil {
			w.log.Warn("blueprint cache invalidation failed", zap.String("path", abs), zap.Error(err))
		}
	}
}
