package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events an editor produces when
// saving a file.
const DefaultDebounce = 300 * time.Millisecond

// Watch reloads the store whenever system.yaml changes on disk. It watches
// the parent directory so atomic rename-over saves are seen. Watch returns
// once the watcher is running; it stops when ctx is cancelled.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	go func() {
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				if err := s.Reload(); err != nil {
					s.log.Error("failed to reload settings", zap.String("path", s.path), zap.Error(err))
					continue
				}
				s.log.Info("settings reloaded", zap.String("path", s.path))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("settings watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
