package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Config from disk whenever its file changes, applying the
// new values in place via ReplaceFrom so existing readers holding a pointer
// to the live Config see the update without a restart.
type Watcher struct {
	path string
	cfg  *Config
	w    *fsnotify.Watcher
}

// Watch starts watching path for changes and returns a Watcher the caller
// must Close when done. cfg is updated in place on every detected change.
func Watch(path string, cfg *Config) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	watcher := &Watcher{path: path, cfg: cfg, w: w}
	go watcher.loop()
	return watcher, nil
}

func (w *Watcher) loop() {
	lastHash := w.cfg.Hash()
	for {
		select {
		case event, ok := <-w.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloaded, err := Load(w.path)
			if err != nil {
				slog.Warn("config reload failed", "path", w.path, "error", err)
				continue
			}
			if h := reloaded.Hash(); h != lastHash {
				w.cfg.ReplaceFrom(reloaded)
				lastHash = h
				slog.Info("config reloaded", "path", w.path)
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.w.Close()
}
