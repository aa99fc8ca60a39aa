package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events editors emit for a single save.
const watchDebounce = 100 * time.Millisecond

// Watch reloads path whenever it is written and hands every valid result to fn. Invalid
// files are logged and skipped. The parent directory is watched so that editors which
// replace the file on save are followed. Watch blocks until ctx is done.
//
// Parameters:
//   - ctx: stops the watcher
//   - path: the config file
//   - fn: receives each reloaded config, on the watcher goroutine
//
// Returns:
//   - error: an error if the watcher could not be created, nil once ctx is done
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	logger.Logger().Info("watching config", "path", abs)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !shouldReload(event, abs) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			cfg, err := Load(abs)
			if err != nil {
				logger.Logger().Warn("config reload rejected", "path", abs, "err", err)
				continue
			}
			logger.Logger().Info("config reloaded", "path", abs)
			fn(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Logger().Warn("config watcher error", "err", err)
		}
	}
}

func shouldReload(event fsnotify.Event, path string) bool {
	if filepath.Clean(event.Name) != path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}
