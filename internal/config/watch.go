package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle coalesces the burst of events an atomic save produces
// (temp create, write, rename) into one reload.
const watchSettle = 250 * time.Millisecond

// Watch blocks until ctx is cancelled, calling onChange after the file at
// path has been written, created or renamed into place. The parent
// directory is watched so replacement by rename is seen.
func Watch(ctx context.Context, path string, onChange func()) error {
	return watch(ctx, path, watchSettle, onChange)
}

func watch(ctx context.Context, path string, settle time.Duration, onChange func()) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch config: resolve path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(absPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config: add %s: %w", dir, err)
	}
	slog.Debug("[DEBUG-CONFIG] watching config", "path", absPath)

	name := filepath.Base(absPath)
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			slog.Debug("[DEBUG-CONFIG] config file event", "op", event.Op.String())
			timer.Reset(settle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("[WARN-CONFIG] config watcher error", "error", err)
		case <-timer.C:
			onChange()
		}
	}
}
