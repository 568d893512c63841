package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/core/selection"
)

// Reloads delivers registry state read from edits made outside this process.
// Only the newest pending state is kept. The receiver applies it with
// Registry.Restore on the thread that owns the registry.
func (s *Store) Reloads() <-chan selection.Snapshot {
	return s.reloads
}

// Watch follows the selection file until ctx is done. The directory is
// watched rather than the file so that atomic replacements are seen.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create selection dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.readyOnce.Do(func() { close(s.watchReady) })
	s.logger.Debug("watching selection file")

	base := filepath.Base(s.path)
	var (
		timer *time.Timer
		fire  <-chan time.Time
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
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("selection watcher error", log.Error(err))
		case <-fire:
			fire = nil
			s.reload()
		}
	}
}

func (s *Store) reload() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("failed to read edited selection file", log.Error(err))
		return
	}
	if s.isOwn(data) {
		return
	}
	if isBlank(data) {
		return
	}
	snap, err := s.decode(data)
	if err != nil {
		// Half-written edits are retried on the next write.
		s.logger.Warn("ignoring malformed edit of selection file", log.Error(err))
		return
	}
	s.remember(data)

	select {
	case <-s.reloads:
	default:
	}
	s.reloads <- snap
	s.logger.Info("selection file changed on disk", log.Int("entries", len(snap.Entries)))
}
