package confidence

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RuleWatcher watches a modifier rule file and swaps the engine's registry
// when the file changes. Reloads are debounced to prevent reload storms
// from editors that write in multiple syscalls.
type RuleWatcher struct {
	path     string
	engine   *Engine
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewRuleWatcher creates a watcher for the given rule file. A zero
// debounce defaults to 100ms.
func NewRuleWatcher(path string, engine *Engine, debounce time.Duration, logger *slog.Logger) (*RuleWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("rule watcher requires a path")
	}
	if engine == nil {
		return nil, fmt.Errorf("rule watcher requires an engine")
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &RuleWatcher{
		path:     path,
		engine:   engine,
		watcher:  watcher,
		debounce: debounce,
		logger:   logger.With("component", "confidence.watcher"),
		stopCh:   make(chan struct{}),
	}, nil
}

// Watch blocks, reloading the registry on file changes, until ctx is
// cancelled or Stop is called. The parent directory is watched rather than
// the file itself so atomic rename-into-place saves are observed.
func (rw *RuleWatcher) Watch(ctx context.Context) error {
	rw.mu.Lock()
	if rw.running {
		rw.mu.Unlock()
		return fmt.Errorf("rule watcher already running")
	}
	rw.running = true
	rw.mu.Unlock()

	defer func() {
		rw.mu.Lock()
		rw.running = false
		rw.mu.Unlock()
	}()

	dir := filepath.Dir(rw.path)
	if err := rw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	rw.logger.Info("rule watcher started", "path", rw.path, "debounce_ms", rw.debounce.Milliseconds())

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("rule watcher stopped (context cancelled)")
			return nil

		case <-rw.stopCh:
			rw.logger.Info("rule watcher stopped")
			return nil

		case event, ok := <-rw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(rw.path) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			// Debounce: restart the timer on every event burst.
			if timer == nil {
				timer = time.NewTimer(rw.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(rw.debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			rw.reload()

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			rw.logger.Error("rule watcher error", "error", err)
		}
	}
}

// Stop terminates the watch loop.
func (rw *RuleWatcher) Stop() error {
	close(rw.stopCh)
	return rw.watcher.Close()
}

// reload parses the rule file and swaps the engine registry. A bad file
// keeps the previous registry; redaction never runs without rules.
func (rw *RuleWatcher) reload() {
	registry, err := LoadRegistry(rw.path)
	if err != nil {
		rw.logger.Error("rule reload failed, keeping previous rules", "path", rw.path, "error", err)
		return
	}
	rw.engine.SetRegistry(registry)
	rw.logger.Info("rules reloaded", "path", rw.path, "modifiers", len(registry.Modifiers()))
}
