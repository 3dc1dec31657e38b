package dev

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ChangeType classifies a detected file change.
type ChangeType int

const (
	// ChangeSource is a Go source change, candidate for a handler reload.
	ChangeSource ChangeType = iota
	// ChangeAsset is any other change; dev clients are refreshed but the
	// handler is left alone.
	ChangeAsset
)

// Change represents a detected file change.
type Change struct {
	Path string
	Type ChangeType
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the files or directories to watch.
	Paths []string

	// Ignore patterns to skip (globs and directory names).
	Ignore []string

	// Interval is the polling interval. Default: 100ms.
	Interval time.Duration
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	"*_test.go",
	".git",
	"node_modules",
	".hotbridge",
	"*.so",
	"*.tmp",
	"*.swp",
	"*~",
}

// Watcher polls the watched paths for modification-time changes. Polling
// keeps the watcher dependency-free and behaves identically across
// platforms and network filesystems.
type Watcher struct {
	config WatcherConfig

	mu          sync.Mutex
	onChange    func(Change)
	running     bool
	initialized bool
	stopCh      chan struct{}
	modTimes    map[string]time.Time
}

// NewWatcher creates a new file watcher.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Interval == 0 {
		config.Interval = 100 * time.Millisecond
	}
	config.Ignore = append(append([]string{}, DefaultIgnore...), config.Ignore...)

	return &Watcher{
		config:   config,
		modTimes: make(map[string]time.Time),
	}
}

// OnChange sets the callback for file changes.
func (w *Watcher) OnChange(fn func(Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start begins polling. It blocks until the context is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	w.sweep() // seed timestamps; no callbacks on the first pass

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			for _, change := range w.sweep() {
				w.emit(change)
			}
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
}

// IsRunning reports whether the watcher is polling.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) emit(change Change) {
	w.mu.Lock()
	callback := w.onChange
	w.mu.Unlock()
	if callback != nil {
		callback(change)
	}
}

// sweep walks the watch paths once and returns the changes since the last
// sweep. The first sweep only records timestamps.
func (w *Watcher) sweep() []Change {
	w.mu.Lock()
	defer w.mu.Unlock()

	var changes []Change
	seen := make(map[string]struct{}, len(w.modTimes))

	for _, root := range w.config.Paths {
		filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				if w.ignored(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if w.ignored(path) {
				return nil
			}

			seen[path] = struct{}{}
			prev, known := w.modTimes[path]
			mod := info.ModTime()
			if known && !mod.After(prev) {
				return nil
			}
			w.modTimes[path] = mod

			if known || w.initialized {
				changes = append(changes, Change{Path: path, Type: classify(path)})
			}
			return nil
		})
	}

	// Deletions count as changes too.
	for path := range w.modTimes {
		if _, ok := seen[path]; !ok {
			delete(w.modTimes, path)
			if w.initialized {
				changes = append(changes, Change{Path: path, Type: classify(path)})
			}
		}
	}

	w.initialized = true
	return changes
}

// ignored checks a path against the ignore patterns: exact base-name
// matches, base-name globs, and path-segment matches.
func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.config.Ignore {
		if pattern == "" {
			continue
		}
		if base == pattern {
			return true
		}
		if strings.ContainsAny(pattern, "*?[") {
			if ok, _ := filepath.Match(pattern, base); ok {
				return true
			}
			continue
		}
		for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
			if segment == pattern {
				return true
			}
		}
	}
	return false
}

// classify maps a file extension to a change type.
func classify(path string) ChangeType {
	if strings.ToLower(filepath.Ext(path)) == ".go" {
		return ChangeSource
	}
	return ChangeAsset
}
