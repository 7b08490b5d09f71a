package relay

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher signals changes to the activity files of a [Source]. It uses
// fsnotify on the source directory and falls back to periodic scanning when
// fsnotify is unavailable or fails.
type Watcher struct {
	src Source
	// events is buffered to 1 so bursts of writes coalesce into one signal.
	events chan struct{}
	done   chan struct{}
	once   sync.Once

	// mu guards fsw, which the watch goroutine drops on fallback.
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	polling atomic.Bool

	pollInterval time.Duration
}

// NewWatcher starts watching src.Dir, which must exist for fsnotify to be
// used; otherwise the watcher polls.
func NewWatcher(src Source, pollInterval time.Duration) *Watcher {
	w := &Watcher{
		src:          src,
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: pollInterval,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.startPolling()
		return w
	}
	if err := fsw.Add(src.Dir); err != nil {
		slog.Info("cannot watch activity dir, falling back to polling", "path", src.Dir, "error", err)
		fsw.Close()
		w.startPolling()
		return w
	}

	w.fsw = fsw
	go w.watch(fsw)
	return w
}

// Events returns a channel that receives a signal after activity files change.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Polling reports whether the watcher is scanning instead of using fsnotify.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.fsw != nil {
			if closeErr := w.fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
			w.fsw = nil
		}
	})
	return err
}

// watch forwards fsnotify events for activity files. On a watcher error it
// switches to polling.
func (w *Watcher) watch(fsw *fsnotify.Watcher) {
	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&relevant != 0 && w.src.Matches(event.Name) {
				w.notify()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, switching to polling", "error", err)
			w.mu.Lock()
			if w.fsw != nil {
				w.fsw.Close()
				w.fsw = nil
			}
			w.mu.Unlock()
			w.startPolling()
			return
		}
	}
}

func (w *Watcher) startPolling() {
	w.polling.Store(true)
	go w.poll()
}

// poll rescans the directory and signals whenever the set of activity files
// or any of their modification times changes.
func (w *Watcher) poll() {
	last := w.fingerprint()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if fp := w.fingerprint(); fp != last {
				last = fp
				w.notify()
			}
		}
	}
}

// fingerprint summarizes the names and modification times of activity files.
func (w *Watcher) fingerprint() string {
	entries, err := os.ReadDir(w.src.Dir)
	if err != nil {
		return ""
	}
	var parts []string
	for _, e := range entries {
		if e.IsDir() || !w.src.Matches(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s@%d", e.Name(), info.ModTime().UnixNano()))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// notify sends one signal, dropping it if one is already pending.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
