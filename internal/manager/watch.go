package manager

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch marks cached models stale when their source files change under dirs.
// Stale models are rebuilt on next access. Directories created later are
// watched too. Watching stops when ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, dirs ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("manager: create watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := addTree(watcher, dir); err != nil {
			_ = watcher.Close()
			return err
		}
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				m.handleEvent(watcher, event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.s.logger.Warn("watch error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}

func (m *Manager) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(watcher, event.Name); err != nil {
				m.s.logger.Warn("watch directory", slog.String("dir", event.Name), slog.String("error", err.Error()))
			}
			return
		}
	}
	if filepath.Ext(event.Name) != ".py" {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if n := m.markStale(event.Name); n > 0 {
		m.s.logger.Debug("source changed", slog.String("path", event.Name), slog.Int("models", n))
	}
}

// markStale flags every cached model built from path.
func (m *Manager) markStale(path string) int {
	path = filepath.Clean(path)
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n := 0
	for _, model := range m.s.models {
		if model.Identity.Path != "" && filepath.Clean(model.Identity.Path) == path {
			model.MarkStale()
			n++
		}
	}
	return n
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "__pycache__") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("manager: watch %s: %w", path, err)
		}
		return nil
	})
}
