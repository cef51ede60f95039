package settings

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Watch observes the settings file for external edits until ctx is
// cancelled, calling onChange with each successfully reloaded value.
//
// The parent directory is watched because atomic writers replace the file
// by rename. Bursts of events are coalesced into one reload.
func (s *Store) Watch(ctx context.Context, logger *slog.Logger, onChange func(Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("settings watcher: started", slog.String("path", s.path))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("settings watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			v, err := s.Load()
			if err != nil {
				logger.Warn("settings watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("settings watcher: reloaded", slog.String("path", s.path))
			onChange(v)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("settings watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
