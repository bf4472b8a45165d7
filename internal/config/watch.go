package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "icalfilter/internal/log"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads the config at path whenever it changes on disk and passes
// the new value to onChange. Invalid files are logged and skipped. The
// parent directory is watched so atomic rename-over saves are seen. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var (
		timer  *time.Timer
		fire   <-chan time.Time
		target = filepath.Clean(abs)
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(reloadDebounce)
			fire = timer.C

		case <-fire:
			fire = nil
			cfg, err := Load(abs)
			if err != nil {
				appLog.Error("config reload failed", err, "path", abs)
				continue
			}
			appLog.Info("config reloaded", "path", abs)
			onChange(cfg)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Error("config watcher error", err, "path", abs)
		}
	}
}
