package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mescon/Melodarr/internal/domain"
	"github.com/mescon/Melodarr/internal/eventbus"
	"github.com/mescon/Melodarr/internal/logger"
)

// resubscribeDelay is how long to wait before retrying a failed watch
// subscription (e.g. inotify watch limit exceeded).
const resubscribeDelay = 30 * time.Second

// ChangeWatcher subscribes to native filesystem events under every
// non-blacklisted root and funnels relevant activity into the debounce
// scheduler. A failed subscription on one directory is retried once after a
// delay and never stops monitoring of the rest of the library.
type ChangeWatcher struct {
	walker     *Walker
	onActivity func(root string)
	publisher  eventbus.Publisher

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	roots    []string // normalized
	origById map[string]string
	resolver *BlacklistResolver
	done     chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// NewChangeWatcher creates a watcher that reports activity per root through
// onActivity. publisher may be nil.
func NewChangeWatcher(walker *Walker, publisher eventbus.Publisher, onActivity func(root string)) *ChangeWatcher {
	return &ChangeWatcher{
		walker:     walker,
		publisher:  publisher,
		onActivity: onActivity,
	}
}

// Start establishes recursive watches for every root that is not blacklisted.
// Returns an error only when no directory at all could be watched.
func (w *ChangeWatcher) Start(roots, blacklist []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	w.fsw = fsw
	w.resolver = NewBlacklistResolver(blacklist)
	w.roots = nil
	w.origById = make(map[string]string)
	w.done = make(chan struct{})

	var watched int
	for _, root := range roots {
		if w.resolver.IsExcluded(root) {
			logger.Infof("Watcher: root %s is blacklisted, not watching", root)
			continue
		}
		n := Normalize(root)
		w.roots = append(w.roots, n)
		w.origById[n] = root
		watched += w.addRecursive(root)
	}

	if watched == 0 && len(w.roots) > 0 {
		_ = fsw.Close()
		w.fsw = nil
		w.publishDegraded("no directories could be watched")
		return errors.New("watcher: no directories could be watched")
	}

	w.running = true
	w.wg.Add(1)
	go w.loop(fsw)

	logger.Infof("Watcher started: %d directories under %d roots", watched, len(w.roots))
	w.publish(domain.WatcherStarted, map[string]interface{}{
		"roots":       len(w.roots),
		"directories": watched,
	})
	return nil
}

// Stop tears down all subscriptions and waits for the event loop to exit.
func (w *ChangeWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.done)
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	if fsw != nil {
		_ = fsw.Close()
	}
	w.wg.Wait()
	logger.Infof("Watcher stopped")
	w.publish(domain.WatcherStopped, map[string]interface{}{})
}

// Running reports whether the watcher is active.
func (w *ChangeWatcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// addRecursive watches dir and every non-excluded subdirectory beneath it.
// Individual failures are logged and retried once after resubscribeDelay.
// Returns the number of directories successfully watched.
func (w *ChangeWatcher) addRecursive(dir string) int {
	var watched int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debugf("Watcher: cannot visit %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.resolver.IsExcluded(path) {
			return fs.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			logger.Warnf("Watcher: failed to watch %s: %v", path, addErr)
			w.scheduleResubscribe(path)
			return nil
		}
		watched++
		return nil
	})
	if err != nil {
		logger.Warnf("Watcher: failed to enumerate %s: %v", dir, err)
	}
	return watched
}

// scheduleResubscribe retries a failed watch once after a delay.
func (w *ChangeWatcher) scheduleResubscribe(path string) {
	time.AfterFunc(resubscribeDelay, func() {
		w.mu.Lock()
		fsw := w.fsw
		running := w.running
		w.mu.Unlock()
		if !running || fsw == nil {
			return
		}
		if err := fsw.Add(path); err != nil {
			logger.Warnf("Watcher: resubscription to %s failed, giving up: %v", path, err)
			w.publishDegraded(fmt.Sprintf("watch lost on %s", path))
			return
		}
		logger.Infof("Watcher: resubscribed to %s", path)
	})
}

func (w *ChangeWatcher) loop(fsw *fsnotify.Watcher) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warnf("Watcher error: %v", err)
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were dropped; rescan everything we watch
				w.markAllDirty()
			}
		}
	}
}

// handleEvent filters one filesystem event and marks the owning root dirty.
func (w *ChangeWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if w.resolver.IsExcluded(path) {
		return
	}

	relevant := false
	if w.walker.Supported(path) {
		relevant = true
	} else if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			relevant = true
			// A new directory may already contain files; watch it and its
			// children before they produce events we would miss.
			if event.Op.Has(fsnotify.Create) {
				w.mu.Lock()
				if w.fsw != nil {
					w.addRecursive(path)
				}
				w.mu.Unlock()
			}
		}
	} else if filepath.Ext(path) == "" {
		// Stat failed and there is no extension: most likely a removed or
		// renamed directory. Its contents are gone, so a rescan is due.
		relevant = event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)
	}

	if !relevant {
		return
	}

	root := w.owningRoot(path)
	if root == "" {
		return
	}
	logger.Debugf("Watcher: %s on %s", event.Op, path)
	w.onActivity(root)
}

// owningRoot returns the original (non-normalized) root containing path.
func (w *ChangeWatcher) owningRoot(path string) string {
	n := Normalize(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.roots {
		if Contains(r, n) {
			return w.origById[r]
		}
	}
	return ""
}

// markAllDirty flags every watched root for rescan.
func (w *ChangeWatcher) markAllDirty() {
	w.mu.Lock()
	roots := make([]string, 0, len(w.roots))
	for _, r := range w.roots {
		roots = append(roots, w.origById[r])
	}
	w.mu.Unlock()
	for _, r := range roots {
		w.onActivity(r)
	}
}

func (w *ChangeWatcher) publish(eventType domain.EventType, data map[string]interface{}) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(domain.Event{
		AggregateType: "watcher",
		AggregateID:   "watcher",
		EventType:     eventType,
		EventData:     data,
	}); err != nil {
		logger.Errorf("Failed to publish %s event: %v", eventType, err)
	}
}

func (w *ChangeWatcher) publishDegraded(reason string) {
	w.publish(domain.WatcherDegraded, map[string]interface{}{
		"reason":   reason,
		"degraded": true,
	})
}
