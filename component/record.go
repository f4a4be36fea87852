package component

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/lifecycle/scheduler"
)

// record is the registry's bookkeeping for one component.
type record struct {
	name      string
	id        uuid.UUID
	component Component
	updater   Updater
	interval  time.Duration
	deps      []string

	mu    sync.Mutex
	state State
	timer scheduler.Timer
	// busy is set while a start, stop or resume hook runs and updating
	// while an Update hook runs. An op that finds its flag set is skipped,
	// so a hook may call back into the registry for its own component.
	busy     bool
	updating bool
	// gen counts forced moves. A transition whose hook ran across one
	// drops its result.
	gen uint64
}

func newRecord(name string, c Component, reg registration) *record {
	rec := &record{
		name:      name,
		id:        uuid.New(),
		component: c,
		interval:  reg.interval,
		deps:      slices.Clone(reg.deps),
	}
	if rec.interval <= 0 {
		rec.interval = DefaultInterval
	}
	if u, ok := c.(Updater); ok {
		rec.updater = u
	}
	return rec
}

func (rec *record) State() State {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.state
}

// begin claims rec for op. ok is false when op does not apply to the current
// state or another transition of rec is in flight.
func (rec *record) begin(op Operation) (from, to State, gen uint64, ok bool) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	from = rec.state
	if rec.busy {
		return from, from, 0, false
	}
	to, ok = from.next(op)
	if !ok {
		return from, from, 0, false
	}
	rec.busy = true
	return from, to, rec.gen, true
}

// finish releases the claim taken by begin and, unless the record was forced
// in the meantime, moves it to s. It reports whether s was applied.
func (rec *record) finish(gen uint64, s State, arm func() scheduler.Timer) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.busy = false
	if rec.gen != gen {
		return false
	}
	rec.setStateLocked(s, arm)
	return true
}

// abort releases the claim taken by begin without a state change.
func (rec *record) abort() {
	rec.mu.Lock()
	rec.busy = false
	rec.mu.Unlock()
}

// force moves rec to Stopped whether or not a hook is in flight and returns
// the state it left.
func (rec *record) force() State {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	from := rec.state
	rec.gen++
	rec.setStateLocked(Stopped, nil)
	return from
}

// beginUpdate claims rec for an Update call. It fails unless rec is Started
// and idle.
func (rec *record) beginUpdate() bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state != Started || rec.busy || rec.updating {
		return false
	}
	rec.updating = true
	return true
}

func (rec *record) endUpdate() {
	rec.mu.Lock()
	rec.updating = false
	rec.mu.Unlock()
}

// setStateLocked moves the record to s, arming the timer with arm when s is
// Started and the component updates, and canceling it otherwise.
func (rec *record) setStateLocked(s State, arm func() scheduler.Timer) {
	rec.state = s
	if s == Started && rec.updater != nil {
		if rec.timer == nil {
			rec.timer = arm()
		}
		return
	}
	rec.cancelTimerLocked()
}

func (rec *record) cancelTimerLocked() {
	if rec.timer != nil {
		rec.timer.Cancel()
		rec.timer = nil
	}
}

// armed reports whether the record currently holds a timer.
func (rec *record) armed() bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.timer != nil
}

// Info is a point-in-time view of a registered component.
type Info struct {
	Name         string        `json:"name"`
	ID           string        `json:"id"`
	State        State         `json:"state"`
	Interval     time.Duration `json:"interval"`
	Dependencies []string      `json:"dependencies"`
	Updatable    bool          `json:"updatable"`
	Armed        bool          `json:"armed"`
	Description  *Description  `json:"description,omitempty"`
}

func (rec *record) info() Info {
	rec.mu.Lock()
	info := Info{
		Name:         rec.name,
		ID:           rec.id.String(),
		State:        rec.state,
		Interval:     rec.interval,
		Dependencies: slices.Clone(rec.deps),
		Updatable:    rec.updater != nil,
		Armed:        rec.timer != nil,
	}
	rec.mu.Unlock()
	if info.Dependencies == nil {
		info.Dependencies = []string{}
	}
	if d, ok := rec.component.(Describable); ok {
		desc := d.Describe()
		info.Description = &desc
	}
	return info
}
