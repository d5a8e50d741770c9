package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"github.com/myrison/agent-peek/internal/mainloop"
)

// Applier consumes freshly read file contents on the main context.
type Applier interface {
	Apply(data []byte)
}

// WatcherConfig tunes the watch/poll hybrid.
type WatcherConfig struct {
	// PollInterval is the fallback reload period, run regardless of events.
	PollInterval time.Duration
	// Debounce coalesces bursts of write notifications.
	Debounce time.Duration
	// SettleDelay is waited after the watched file was replaced before
	// watching the new one.
	SettleDelay time.Duration
}

// Watcher keeps a Store in sync with the sessions file: fsnotify events for
// fast reaction, a fixed-interval poll as a backstop for missed events.
// File reads happen on the watcher goroutine; the bytes are posted to the
// main context.
type Watcher struct {
	storage *Storage
	target  Applier
	sched   mainloop.Scheduler
	cfg     WatcherConfig

	paused   atomic.Bool
	reloadCh chan struct{}

	watchingFile bool
	watchingDir  bool
}

// NewWatcher creates a watcher feeding target.
func NewWatcher(storage *Storage, target Applier, sched mainloop.Scheduler, cfg WatcherConfig) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 200 * time.Millisecond
	}
	return &Watcher{
		storage:  storage,
		target:   target,
		sched:    sched,
		cfg:      cfg,
		reloadCh: make(chan struct{}, 1),
	}
}

// Pause stops delivering reloads. Watching and polling keep running so
// nothing needs re-establishing on Resume.
func (w *Watcher) Pause() {
	w.paused.Store(true)
}

// Resume re-enables delivery and schedules a reload.
func (w *Watcher) Resume() {
	w.paused.Store(false)
	w.requestReload()
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	path := filepath.Clean(w.storage.Path())
	w.establish(fsw)

	debounced := debounce.New(w.cfg.Debounce)
	rewatch := make(chan struct{}, 1)
	scheduleRewatch := func() {
		time.AfterFunc(w.cfg.SettleDelay, func() {
			select {
			case rewatch <- struct{}{}:
			default:
			}
		})
	}

	poll := time.NewTicker(w.cfg.PollInterval)
	defer poll.Stop()

	w.requestReload()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			// Directory watches also report temp files and the lock dir.
			if filepath.Clean(ev.Name) != path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				// The watched inode is gone, typically replaced by a
				// writer's rename. The data is not; watch the new file.
				if w.watchingFile {
					_ = fsw.Remove(path)
					w.watchingFile = false
				}
				scheduleRewatch()
			case ev.Has(fsnotify.Create):
				if !w.watchingFile {
					scheduleRewatch()
				}
				debounced(w.requestReload)
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Chmod):
				// Chmod covers the link-count change some platforms report
				// before the replaced inode's removal.
				debounced(w.requestReload)
			}

		case <-rewatch:
			w.establish(fsw)
			w.requestReload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("[session-watcher] Watch error: %v", err)

		case <-poll.C:
			w.requestReload()

		case <-w.reloadCh:
			w.reload()
		}
	}
}

// establish watches the file itself when it exists, otherwise its
// directory so the file's creation is noticed.
func (w *Watcher) establish(fsw *fsnotify.Watcher) {
	path := w.storage.Path()
	dir := filepath.Dir(path)

	if _, err := os.Stat(path); err == nil {
		err = fsw.Add(path)
		if err == nil {
			w.watchingFile = true
			if w.watchingDir {
				_ = fsw.Remove(dir)
				w.watchingDir = false
			}
			return
		}
		log.Printf("[session-watcher] Failed to watch %s: %v", path, err)
	}

	w.watchingFile = false
	if !w.watchingDir {
		if err := fsw.Add(dir); err != nil {
			log.Printf("[session-watcher] Failed to watch %s: %v", dir, err)
			return
		}
		w.watchingDir = true
	}
}

func (w *Watcher) requestReload() {
	select {
	case w.reloadCh <- struct{}{}:
	default:
	}
}

func (w *Watcher) reload() {
	if w.paused.Load() {
		return
	}
	data, err := w.storage.ReadRaw()
	if err != nil {
		log.Printf("[session-watcher] Read failed, will retry: %v", err)
		return
	}
	w.sched.Post(func() {
		if w.paused.Load() {
			return
		}
		w.target.Apply(data)
	})
}
