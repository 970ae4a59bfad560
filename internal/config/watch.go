package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "taskpanel/pkg/logx"
)

// Watch reloads the config whenever its file changes, until ctx ends. The
// parent directory is watched so editors that save by rename are seen.
// Events are debounced since a single save often produces several.
//
// Watch returns an error when the watcher cannot be set up or breaks; the
// caller is expected to restart it.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()

	dir, name := filepath.Dir(m.path), filepath.Base(m.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("config watch %s: %w", dir, err)
	}
	m.log.Debug("config watch started", logx.String("dir", dir), logx.String("file", name))

	debounce := time.NewTimer(m.debounce)
	debounce.Stop()
	defer debounce.Stop()

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove | fsnotify.Chmod
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("config watch: event stream closed")
			}
			if filepath.Base(ev.Name) == name && ev.Op&relevant != 0 {
				debounce.Reset(m.debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("config watch: error stream closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; the file may have changed.
				debounce.Reset(m.debounce)
				continue
			}
			m.log.Warn("config watch error", logx.Err(err))

		case <-debounce.C:
			m.reloadAndLog(ctx, "file changed")
		}
	}
}

// reloadAndLog runs Reload and logs the outcome; errors keep the previous
// config.
func (m *Manager) reloadAndLog(ctx context.Context, trigger string) {
	_, err := m.Reload(ctx)
	switch {
	case err == nil:
		m.log.Debug("config published", logx.String("path", m.path), logx.String("trigger", trigger))
	case errors.Is(err, ErrUnchanged):
		m.log.Debug("config unchanged", logx.String("path", m.path), logx.String("trigger", trigger))
	default:
		m.log.Warn("config rejected; keeping previous", logx.String("path", m.path), logx.String("trigger", trigger), logx.Err(err))
	}
}

// ReloadNow is Reload with the outcome logged, for signal handlers.
func (m *Manager) ReloadNow(ctx context.Context) { m.reloadAndLog(ctx, "signal") }
