package i18n

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads the locale directory whenever one of its files changes and
// hands the new bundle to onReload. Bursts of events are debounced. A bundle
// that fails to load is logged and skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, dir string, logger *slog.Logger, onReload func(*Bundle) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("i18n watcher: started", slog.String("dir", dir))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("i18n watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			b, err := LoadDir(dir)
			if err != nil {
				logger.Warn("i18n watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			if err := onReload(b); err != nil {
				logger.Warn("i18n watcher: reload rejected", slog.String("error", err.Error()))
				continue
			}
			logger.Info("i18n watcher: locales reloaded", slog.Any("locales", b.Locales()))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			switch filepath.Ext(ev.Name) {
			case ".yaml", ".yml", ".json":
			default:
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
			logger.Debug("i18n watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("i18n watcher: error", slog.String("error", werr.Error()))
		}
	}
}
