// Package clock abstracts time so that timers can be driven by tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer is a cancellable scheduled callback
type Timer interface {
	// Stop cancels the timer. It returns false if the timer already fired or was stopped.
	Stop() bool
}

// Clock interface abstracts time operations for testing
type Clock interface {
	// Now returns the current time
	Now() time.Time
	// AfterFunc calls f in its own goroutine after d has elapsed
	AfterFunc(d time.Duration, f func()) Timer
	// NewTicker creates a new ticker that will send on its channel every d duration
	NewTicker(d time.Duration) *time.Ticker
}

// RealClock implements Clock using the real system time
type RealClock struct{}

// Now returns the current time
func (RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// NewTicker creates a new time.Ticker
func (RealClock) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}

// MockClock implements Clock for testing. Timers only fire from Advance.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*mockTimer
	ticker  *time.Ticker
}

type mockTimer struct {
	clock   *MockClock
	due     time.Time
	f       func()
	stopped bool
	fired   bool
}

// NewMockClock creates a mock clock set to t
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

// Now returns the mocked current time
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// AfterFunc registers f to run once the mocked time passes d
func (m *MockClock) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &mockTimer{clock: m, due: m.current.Add(d), f: f}
	m.timers = append(m.timers, t)
	return t
}

// NewTicker creates a ticker (for testing, this may not tick automatically)
func (m *MockClock) NewTicker(d time.Duration) *time.Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker == nil {
		m.ticker = time.NewTicker(d)
	}
	return m.ticker
}

// Advance moves the mocked time forward and synchronously runs every timer
// that became due, in due order
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.current = m.current.Add(d)
	now := m.current

	var due []*mockTimer
	pending := m.timers[:0]
	for _, t := range m.timers {
		switch {
		case t.stopped:
		case !t.due.After(now):
			t.fired = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	m.timers = pending
	m.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })
	for _, t := range due {
		t.f()
	}
}

// Set sets the mocked current time without firing timers
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}

// PendingTimers returns the number of timers that have not fired or been stopped
func (m *MockClock) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Ensure implementations satisfy the interface
var (
	_ Clock = RealClock{}
	_ Clock = (*MockClock)(nil)
)
