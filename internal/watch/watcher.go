// Package watch follows the registry files on disk and reports settled
// changes, so configuration drift shows up without waiting for the next
// prompt.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"supermanager/internal/config"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeFunc receives the paths that settled in one debounce window.
type ChangeFunc func(ctx context.Context, paths []string)

// Stats tracks watcher activity.
type Stats struct {
	Created       int
	Modified      int
	Deleted       int
	Batches       int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
	LastEventType string
}

// RegistryWatcher watches the instruction directories, the registries
// directory and the directory holding settings.json.
type RegistryWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	paths       config.Paths
	dirs        []string
	onChange    ChangeFunc
	logger      *zap.Logger
	pending     map[string]time.Time
	debounceDur time.Duration
	tick        time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// New creates a watcher. debounce is how long a path must stay quiet
// before it is reported.
func New(p config.Paths, debounce time.Duration, onChange ChangeFunc, logger *zap.Logger) (*RegistryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dirs := []string{
		p.RegistriesDir,
		p.InstructionDir(config.EventUserPromptSubmit),
		p.InstructionDir(config.EventStop),
		filepath.Dir(p.SettingsJSON),
	}
	if servers := p.FindServersYAML(); servers != "" {
		dirs = append(dirs, filepath.Dir(servers))
	}

	tick := debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	if tick > 100*time.Millisecond {
		tick = 100 * time.Millisecond
	}

	return &RegistryWatcher{
		watcher:     w,
		paths:       p,
		dirs:        dedupe(dirs),
		onChange:    onChange,
		logger:      logger,
		pending:     make(map[string]time.Time),
		debounceDur: debounce,
		tick:        tick,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start adds every existing directory and begins the event loop in a
// goroutine. Missing directories are skipped.
func (rw *RegistryWatcher) Start(ctx context.Context) error {
	rw.mu.Lock()
	if rw.running {
		rw.mu.Unlock()
		return nil
	}
	rw.running = true
	rw.mu.Unlock()

	for _, dir := range rw.dirs {
		if _, err := os.Stat(dir); err != nil {
			rw.logger.Debug("not watching missing directory", zap.String("dir", dir))
			continue
		}
		if err := rw.watcher.Add(dir); err != nil {
			rw.logger.Warn("watch failed", zap.String("dir", dir), zap.Error(err))
			continue
		}
		rw.logger.Info("watching", zap.String("dir", dir))
	}

	go rw.run(ctx)
	return nil
}

// Stop ends the event loop and releases the watcher.
func (rw *RegistryWatcher) Stop() {
	rw.mu.Lock()
	if !rw.running {
		rw.mu.Unlock()
		return
	}
	rw.running = false
	rw.mu.Unlock()

	close(rw.stopCh)
	<-rw.doneCh

	if err := rw.watcher.Close(); err != nil {
		rw.logger.Error("error closing watcher", zap.Error(err))
	}
	rw.logger.Debug("watcher stopped")
}

// Done is closed when the event loop exits.
func (rw *RegistryWatcher) Done() <-chan struct{} { return rw.doneCh }

func (rw *RegistryWatcher) run(ctx context.Context) {
	defer close(rw.doneCh)

	ticker := time.NewTicker(rw.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-rw.stopCh:
			return

		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			rw.handleEvent(event)

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.logger.Error("watcher error", zap.Error(err))
			rw.mu.Lock()
			rw.stats.Errors++
			rw.mu.Unlock()

		case <-ticker.C:
			rw.flush(ctx)
		}
	}
}

func (rw *RegistryWatcher) handleEvent(event fsnotify.Event) {
	if !rw.relevant(event.Name) {
		return
	}

	var kind string
	switch {
	case event.Op&fsnotify.Create != 0:
		kind = "create"
	case event.Op&fsnotify.Write != 0:
		kind = "modify"
	case event.Op&fsnotify.Remove != 0:
		kind = "delete"
	case event.Op&fsnotify.Rename != 0:
		kind = "rename"
	default:
		return
	}

	rw.logger.Debug("registry event", zap.String("type", kind), zap.String("path", event.Name))

	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.stats.LastEventTime = time.Now()
	rw.stats.LastEventPath = event.Name
	rw.stats.LastEventType = kind
	switch kind {
	case "create":
		rw.stats.Created++
	case "modify":
		rw.stats.Modified++
	default:
		rw.stats.Deleted++
	}
	rw.pending[event.Name] = time.Now()
}

// relevant reports whether path is a registry input. The persisted config
// hash lives next to the registries and is written by the engine itself.
func (rw *RegistryWatcher) relevant(path string) bool {
	clean := filepath.Clean(path)
	if clean == filepath.Clean(rw.paths.ConfigHashFile) {
		return false
	}
	base := filepath.Base(clean)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") {
		return false
	}
	switch {
	case clean == filepath.Clean(rw.paths.SettingsJSON):
		return true
	case clean == filepath.Clean(rw.paths.SkillRegistry):
		return true
	case base == "servers.yaml" || base == "servers.yml":
		return true
	case strings.HasSuffix(base, ".md"):
		dir := filepath.Dir(clean)
		return dir == filepath.Clean(rw.paths.InstructionDir(config.EventUserPromptSubmit)) ||
			dir == filepath.Clean(rw.paths.InstructionDir(config.EventStop))
	}
	return false
}

func (rw *RegistryWatcher) flush(ctx context.Context) {
	rw.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range rw.pending {
		if now.Sub(at) >= rw.debounceDur {
			settled = append(settled, path)
			delete(rw.pending, path)
		}
	}
	if len(settled) > 0 {
		rw.stats.Batches++
	}
	rw.mu.Unlock()

	if len(settled) == 0 || rw.onChange == nil {
		return
	}
	sort.Strings(settled)
	rw.onChange(ctx, settled)
}

// Stats returns a copy of the activity counters.
func (rw *RegistryWatcher) Stats() Stats {
	rw.mu.RLock()
	defer rw.mu.RUnlock()
	return rw.stats
}

// IsWatching reports whether the event loop is running.
func (rw *RegistryWatcher) IsWatching() bool {
	rw.mu.RLock()
	defer rw.mu.RUnlock()
	return rw.running
}

// WatchedDirs returns the directories currently watched.
func (rw *RegistryWatcher) WatchedDirs() []string {
	return rw.watcher.WatchList()
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = filepath.Clean(s)
		if s == "." || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
