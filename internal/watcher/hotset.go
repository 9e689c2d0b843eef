package watcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/proxikal/cerberus/internal/blueprint"
)

// HotSetOptions configures the optional auto-blueprint regeneration
// thread of spec.md §4.11: "periodically regenerates 'hot' blueprints
// (access count >= threshold) that have been modified since last
// generation."
type HotSetOptions struct {
	Enabled       bool
	Threshold     int
	CheckInterval time.Duration
}

// HotSet tracks blueprint access counts in memory and, when enabled,
// runs a background thread that re-generates any tracked file whose
// cache entry has gone missing (invalidated by a watcher-driven update,
// i.e. "modified since last generation") and whose access count has
// crossed Threshold.
type HotSet struct {
	opts      HotSetOptions
	generator *blueprint.Generator
	log       *zap.Logger

	mu     sync.Mutex
	access map[string]int

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewHotSet builds a hot-set tracker. Call Start to begin the background
// regeneration thread when opts.Enabled.
func NewHotSet(opts HotSetOptions, generator *blueprint.Generator, log *zap.Logger) *HotSet {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Minute
	}
	return &HotSet{
		opts:      opts,
		generator: generator,
		log:       log,
		access:    make(map[string]int),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// RecordAccess increments filePath's access counter. Call this from
// wherever a blueprint is actually served (e.g. the daemon's
// get_blueprint RPC method).
func (h *HotSet) RecordAccess(filePath string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.access[filePath]++
}

// Start launches the background regeneration loop; a no-op if disabled.
func (h *HotSet) Start() {
	if !h.opts.Enabled {
		close(h.done)
		return
	}
	go h.loop()
}

func (h *HotSet) loop() {
	defer close(h.done)
	ticker := time.NewTicker(h.opts.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.regenerateHot()
		}
	}
}

// regenerateHot re-runs Generate with UseCache for every hot path.
// Generate consults the cache internally (keyed by file mtime), so a
// path whose blueprint is still fresh is a cheap cache hit; only a path
// invalidated by a watcher-driven update (i.e. modified since last
// generation) actually re-walks the file.
func (h *HotSet) regenerateHot() {
	hot := h.hotPaths()
	if len(hot) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	for _, path := range hot {
		if _, err := h.generator.Generate(ctx, blueprint.Request{FilePath: path, UseCache: true}); err != nil {
			h.log.Warn("hot blueprint regeneration failed", zap.String("path", path), zap.Error(err))
		}
	}
}

func (h *HotSet) hotPaths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var hot []string
	for path, count := range h.access {
		if count >= h.opts.Threshold {
			hot = append(hot, path)
		}
	}
	return hot
}

// Stop ends the background loop and waits for it to exit.
func (h *HotSet) Stop() {
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
