package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads the catalog file when it changes on disk. The parent
// directory is watched because editors often replace files by rename.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(context.Context, *Catalog) error
}

func NewWatcher(path string, onChange func(context.Context, *Catalog) error) *Watcher {
	return &Watcher{path: filepath.Clean(path), debounce: defaultDebounce, onChange: onChange}
}

// Run blocks until ctx is done. Invalid files are logged and skipped so
// the active configuration stays in place.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	slog.Info("catalog_watch_started", "path", w.path)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("catalog_watch_error", "path", w.path, "error", err)
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cat, err := Load(w.path)
	if err != nil {
		slog.Warn("catalog_reload_rejected", "path", w.path, "error", err)
		return
	}
	if err := w.onChange(ctx, cat); err != nil {
		slog.Warn("catalog_apply_failed", "path", w.path, "error", err)
		return
	}
	slog.Info("catalog_reloaded", "path", w.path, "labels", cat.Categories.Labels())
}
