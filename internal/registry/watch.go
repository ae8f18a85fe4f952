package registry

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback receives a freshly loaded registry. The previous registry is
// left untouched; callers swap references.
type ReloadCallback func(*Registry)

const reloadDebounce = 200 * time.Millisecond

// Watch watches the registry file at path and calls cb with a new Registry
// each time the file settles after a change. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// editors which save via rename-over keep triggering reloads. A file that
// fails to parse is logged and ignored; the last good registry stays active.
func Watch(ctx context.Context, path string, logger *slog.Logger, cb ReloadCallback) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	logger.Info("registry watcher: started", slog.String("path", abs))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(reloadDebounce)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(reloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("registry watcher: stopped")
			return nil

		case <-reloadCh:
			reg, loadErr := LoadFile(abs)
			if loadErr != nil {
				logger.Warn("registry watcher: reload failed, keeping previous registry",
					slog.String("path", abs),
					slog.String("error", loadErr.Error()))
				continue
			}
			logger.Info("registry watcher: reloaded",
				slog.String("path", abs),
				slog.Int("components", reg.Len()))
			if cb != nil {
				cb(reg)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("registry watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
