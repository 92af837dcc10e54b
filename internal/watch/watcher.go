// Package watch notices edits to the override config file so loop mode can reload it.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher signals on Changes after the config file is written, created or renamed.
// Bursts of events inside Debounce collapse into one signal.
type Watcher struct {
	path     string
	Debounce time.Duration
	logger   *slog.Logger
	changes  chan struct{}
}

func New(path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		Debounce: defaultDebounce,
		logger:   logger,
		changes:  make(chan struct{}, 1),
	}
}

// Changes never blocks the watcher; at most one pending signal is kept.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Start watches the file's directory, since editors often replace the file rather than
// write it in place. The goroutine exits when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != w.path {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(w.Debounce)
				} else {
					timer.Reset(w.Debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				w.logger.Info("config file changed", "path", w.path)
				select {
				case w.changes <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("config watcher error", "err", err)
			}
		}
	}()
	return nil
}
