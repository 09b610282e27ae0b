package server

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 200 * time.Millisecond

// watchConfig calls reload after the config file is written, created or
// renamed into place. The directory is watched so editors that replace the
// file atomically are seen too. It returns once the watcher is running.
func watchConfig(ctx context.Context, path string, reload func() error, logger *zap.Logger) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return err
	}
	logger.Info("watching config file", zap.String("path", abs))

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
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				logger.Debug("config file changed", zap.String("op", ev.Op.String()))
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(watchDebounce)
				fire = timer.C
			case <-fire:
				fire = nil
				// errors are logged by reload
				_ = reload()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("config watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
