package store

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the event burst a reindex produces into
// one reload.
const DefaultWatchDebounce = 2 * time.Second

// Watcher reloads the backend when the snapshot directory changes on disk
// and notifies the caller afterwards (to flush the result cache).
type Watcher struct {
	backend  *EmbeddedBackend
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload func()

	closeOnce sync.Once
	done      chan struct{}
}

// WatchSnapshot starts watching the backend's snapshot directory. onReload
// may be nil.
func WatchSnapshot(backend *EmbeddedBackend, debounce time.Duration, onReload func()) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(backend.Dir()); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		backend:  backend,
		watcher:  fsw,
		debounce: debounce,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	go w.run()

	return w, nil
}

// run consumes filesystem events, debouncing into reloads.
func (w *Watcher) run() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("snapshot_watch_error", slog.String("error", err.Error()))

		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.backend.Reload(); err != nil {
				slog.Error("snapshot_reload_failed", slog.String("error", err.Error()))
				continue
			}
			if w.onReload != nil {
				w.onReload()
			}
		}
	}
}

// relevant filters out lock-file churn and reads.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	if name == lockFileName {
		return false
	}
	// SQLite sidecar files churn on every query
	if strings.HasSuffix(name, "-wal") || strings.HasSuffix(name, "-shm") || strings.HasSuffix(name, "-journal") {
		return false
	}
	return true
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
