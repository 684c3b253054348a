// Package testutil provides test utilities including mocks and test database helpers.
package testutil

import (
	"sync"
	"time"

	"github.com/mescon/Melodarr/internal/clock"
	"github.com/mescon/Melodarr/internal/domain"
	"github.com/mescon/Melodarr/internal/eventbus"
)

// =============================================================================
// MockClock - Testable time abstraction
// =============================================================================

// MockClock implements clock.Clock for testing, providing deterministic
// control over time-dependent operations like debounce windows.
type MockClock struct {
	mu           sync.Mutex
	now          time.Time
	pendingFuncs []pendingFunc
}

type pendingFunc struct {
	executeAt time.Time
	fn        func()
	stopped   bool
}

// MockTimer implements clock.Timer for testing.
type MockTimer struct {
	clock *MockClock
	index int
}

// Compile-time assertion that MockClock implements clock.Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a new MockClock with the current time as initial value.
func NewMockClock() *MockClock {
	return &MockClock{
		now: time.Now(),
	}
}

// NewMockClockAt creates a new MockClock with a specific initial time.
func NewMockClockAt(t time.Time) *MockClock {
	return &MockClock{
		now: t,
	}
}

// Now returns the mock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// SetNow sets the mock's current time without triggering pending functions.
func (m *MockClock) SetNow(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// AfterFunc schedules f to be called after duration d.
// Returns a Timer that can be used to cancel or re-arm the call.
func (m *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	executeAt := m.now.Add(d)
	index := len(m.pendingFuncs)
	m.pendingFuncs = append(m.pendingFuncs, pendingFunc{
		executeAt: executeAt,
		fn:        f,
		stopped:   false,
	})

	return &MockTimer{clock: m, index: index}
}

// Advance moves time forward by the given duration and executes any functions
// whose scheduled time has passed. Returns the number of functions executed.
func (m *MockClock) Advance(d time.Duration) int {
	m.mu.Lock()
	newTime := m.now.Add(d)
	m.now = newTime

	var toExecute []func()
	for i := range m.pendingFuncs {
		pf := &m.pendingFuncs[i]
		if !pf.stopped && !pf.executeAt.After(newTime) {
			toExecute = append(toExecute, pf.fn)
			pf.stopped = true // Mark as executed
		}
	}
	m.mu.Unlock()

	// Execute outside the lock to avoid deadlocks
	for _, fn := range toExecute {
		fn()
	}
	return len(toExecute)
}

// FireAll immediately executes all pending scheduled functions, regardless of
// their scheduled time.
func (m *MockClock) FireAll() int {
	m.mu.Lock()
	var toExecute []func()
	for i := range m.pendingFuncs {
		pf := &m.pendingFuncs[i]
		if !pf.stopped {
			toExecute = append(toExecute, pf.fn)
			pf.stopped = true
		}
	}
	m.mu.Unlock()

	for _, fn := range toExecute {
		fn()
	}
	return len(toExecute)
}

// PendingCount returns the number of scheduled functions that haven't been
// executed or stopped.
func (m *MockClock) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, pf := range m.pendingFuncs {
		if !pf.stopped {
			count++
		}
	}
	return count
}

// Stop prevents the timer from firing. Returns true if the timer was stopped,
// false if it had already fired or been stopped.
func (t *MockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.index < len(t.clock.pendingFuncs) && !t.clock.pendingFuncs[t.index].stopped {
		t.clock.pendingFuncs[t.index].stopped = true
		return true
	}
	return false
}

// Reset re-arms the timer to fire after d from the mock's current time.
// Like time.Timer.Reset, it re-arms even when the timer had already fired,
// and returns whether the timer had been active.
func (t *MockTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.index >= len(t.clock.pendingFuncs) {
		return false
	}
	pf := &t.clock.pendingFuncs[t.index]
	wasActive := !pf.stopped
	pf.stopped = false
	pf.executeAt = t.clock.now.Add(d)
	return wasActive
}

// =============================================================================
// MockPublisher - in-memory event recorder
// =============================================================================

// MockPublisher implements eventbus.Publisher, recording published events
// for assertions and delivering them synchronously to subscribers.
type MockPublisher struct {
	mu       sync.Mutex
	events   []domain.Event
	handlers map[domain.EventType][]func(domain.Event)
}

var _ eventbus.Publisher = (*MockPublisher)(nil)

// NewMockPublisher creates an empty MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		handlers: make(map[domain.EventType][]func(domain.Event)),
	}
}

// Publish records the event and invokes matching handlers synchronously.
func (p *MockPublisher) Publish(event domain.Event) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	handlers := append([]func(domain.Event){}, p.handlers[event.EventType]...)
	p.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

// Subscribe registers a synchronous handler for an event type.
func (p *MockPublisher) Subscribe(eventType domain.EventType, handler func(domain.Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[eventType] = append(p.handlers[eventType], handler)
}

// Events returns a copy of all published events.
func (p *MockPublisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event{}, p.events...)
}

// EventsOfType returns published events matching the given type.
func (p *MockPublisher) EventsOfType(eventType domain.EventType) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, e := range p.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
