package componenttest

import (
	"slices"
	"sync"
	"time"

	"github.com/kbukum/lifecycle/scheduler"
)

// FakeScheduler records armed timers and fires them only on demand.
type FakeScheduler struct {
	mu     sync.Mutex
	timers []*FakeTimer
}

var _ scheduler.Scheduler = (*FakeScheduler)(nil)

// NewFakeScheduler creates a FakeScheduler.
func NewFakeScheduler() *FakeScheduler { return &FakeScheduler{} }

// Schedule implements scheduler.Scheduler.
func (s *FakeScheduler) Schedule(interval time.Duration, fn func()) scheduler.Timer {
	t := &FakeTimer{Interval: interval, fn: fn}
	s.mu.Lock()
	s.timers = append(s.timers, t)
	s.mu.Unlock()
	return t
}

// Timers returns every timer ever armed, canceled ones included.
func (s *FakeScheduler) Timers() []*FakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.timers)
}

// Active returns the timers that have not been canceled.
func (s *FakeScheduler) Active() []*FakeTimer {
	var active []*FakeTimer
	for _, t := range s.Timers() {
		if !t.Canceled() {
			active = append(active, t)
		}
	}
	return active
}

// Tick fires every active timer once, in arming order.
func (s *FakeScheduler) Tick() {
	for _, t := range s.Active() {
		t.Fire()
	}
}

// FakeTimer is a timer armed on a FakeScheduler.
type FakeTimer struct {
	Interval time.Duration
	fn       func()

	mu       sync.Mutex
	canceled bool
	cancels  int
	fired    int
}

// Cancel implements scheduler.Timer.
func (t *FakeTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.canceled = true
	t.cancels++
}

// Canceled reports whether Cancel was called.
func (t *FakeTimer) Canceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}

// CancelCount returns how many times Cancel was called.
func (t *FakeTimer) CancelCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancels
}

// Fired returns how many times the timer fired.
func (t *FakeTimer) Fired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Fire runs the callback unless the timer is canceled.
func (t *FakeTimer) Fire() {
	t.mu.Lock()
	if t.canceled {
		t.mu.Unlock()
		return
	}
	t.fired++
	t.mu.Unlock()
	t.fn()
}
