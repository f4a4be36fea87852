package componenttest

import (
	"context"
	"sync"

	"github.com/kbukum/lifecycle/component"
)

// Hook names a Recorder hook, as written to the Journal after the recorder name.
const (
	HookStart    = "start"
	HookStop     = "stop"
	HookShutdown = "shutdown"
	HookUpdate   = "update"
)

// Recorder is a component that journals every hook call as "<name>.<hook>".
// The call is journaled before any configured failure takes effect.
type Recorder struct {
	name    string
	journal *Journal

	mu     sync.Mutex
	fail   map[string]error
	panics map[string]any
	hooks  map[string]func(ctx context.Context) error
}

var _ component.Component = (*Recorder)(nil)

// NewRecorder creates a recorder writing to j.
func NewRecorder(name string, j *Journal) *Recorder {
	return &Recorder{
		name:    name,
		journal: j,
		fail:    make(map[string]error),
		panics:  make(map[string]any),
		hooks:   make(map[string]func(context.Context) error),
	}
}

// Name returns the recorder's journal prefix.
func (r *Recorder) Name() string { return r.name }

// Fail makes hook return err until cleared with Fail(hook, nil).
func (r *Recorder) Fail(hook string, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, hook)
	} else {
		r.fail[hook] = err
	}
	return r
}

// Panic makes hook panic with v.
func (r *Recorder) Panic(hook string, v any) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics[hook] = v
	return r
}

// OnHook runs fn inside hook, after journaling. Its error is returned from the hook.
func (r *Recorder) OnHook(hook string, fn func(ctx context.Context) error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[hook] = fn
	return r
}

// Calls returns how many times hook ran.
func (r *Recorder) Calls(hook string) int {
	return r.journal.Count(r.name + "." + hook)
}

func (r *Recorder) Start(ctx context.Context) error { return r.call(ctx, HookStart) }
func (r *Recorder) Stop(ctx context.Context) error { return r.call(ctx, HookStop) }
func (r *Recorder) Shutdown(ctx context.Context) error { return r.call(ctx, HookShutdown) }

func (r *Recorder) call(ctx context.Context, hook string) error {
	r.journal.Record(r.name + "." + hook)

	r.mu.Lock()
	p, shouldPanic := r.panics[hook]
	err := r.fail[hook]
	fn := r.hooks[hook]
	r.mu.Unlock()

	if shouldPanic {
		panic(p)
	}
	if err != nil {
		return err
	}
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// UpdatingRecorder is a Recorder that also implements component.Updater.
type UpdatingRecorder struct {
	*Recorder
}

var _ component.Updater = UpdatingRecorder{}

// NewUpdatingRecorder creates an update-capable recorder writing to j.
func NewUpdatingRecorder(name string, j *Journal) UpdatingRecorder {
	return UpdatingRecorder{Recorder: NewRecorder(name, j)}
}

func (r UpdatingRecorder) Update(ctx context.Context) error { return r.call(ctx, HookUpdate) }
