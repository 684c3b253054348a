package ingest

import (
	"sync"
	"time"

	"github.com/mescon/Melodarr/internal/clock"
	"github.com/mescon/Melodarr/internal/logger"
)

// DebounceScheduler coalesces bursts of filesystem activity into a single
// rescan trigger after a quiet window. A single timer is re-armed on every
// OnActivity call; the dirty-root buffer is drained atomically when the
// timer fires, so N events inside the window produce exactly one trigger.
type DebounceScheduler struct {
	clk    clock.Clock
	window time.Duration
	fire   func(roots []string)

	mu      sync.Mutex
	timer   clock.Timer
	dirty   map[string]struct{}
	stopped bool
}

// NewDebounceScheduler creates a scheduler that calls fire with the set of
// dirty roots after window of quiet following the last OnActivity call.
func NewDebounceScheduler(clk clock.Clock, window time.Duration, fire func(roots []string)) *DebounceScheduler {
	return &DebounceScheduler{
		clk:    clk,
		window: window,
		fire:   fire,
		dirty:  make(map[string]struct{}),
	}
}

// OnActivity marks a root dirty and re-arms the quiet-window timer.
// Safe for concurrent use; concurrent calls collapse into one fire.
func (d *DebounceScheduler) OnActivity(root string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.dirty[root] = struct{}{}

	if d.timer == nil {
		d.timer = d.clk.AfterFunc(d.window, d.onFire)
		return
	}
	if !d.timer.Reset(d.window) {
		// Timer already fired or is firing; onFire drains the buffer under
		// the lock, so re-arming a fresh timer keeps this activity covered.
		d.timer = d.clk.AfterFunc(d.window, d.onFire)
	}
}

// Pending reports whether any root is waiting for a debounce fire.
func (d *DebounceScheduler) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dirty) > 0
}

// Stop cancels any armed timer and clears the buffer. Subsequent
// OnActivity calls are ignored.
func (d *DebounceScheduler) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.dirty = make(map[string]struct{})
}

// onFire drains the dirty buffer and invokes the trigger outside the lock.
func (d *DebounceScheduler) onFire() {
	d.mu.Lock()
	if d.stopped || len(d.dirty) == 0 {
		d.timer = nil
		d.mu.Unlock()
		return
	}
	roots := make([]string, 0, len(d.dirty))
	for r := range d.dirty {
		roots = append(roots, r)
	}
	d.dirty = make(map[string]struct{})
	d.timer = nil
	d.mu.Unlock()

	logger.Debugf("Debounce window elapsed, triggering rescan for %d roots", len(roots))
	d.fire(roots)
}
