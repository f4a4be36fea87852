package componenttest

import (
	"context"
	"testing"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/logger"
)

// THelper bundles a fresh registry with a FakeScheduler and a Journal, and
// shuts the registry down when the test ends.
type THelper struct {
	t         testing.TB
	ctx       context.Context
	registry  *component.Registry
	scheduler *FakeScheduler
	journal   *Journal
}

// T creates a helper for t. Extra registry options are applied after the
// fake scheduler and a silent logger.
//
//	func TestPause(t *testing.T) {
//	    h := componenttest.T(t)
//	    h.Register("x", h.UpdatingRecorder("x"))
//	    h.MustStart("x")
//	}
func T(t testing.TB, opts ...component.RegistryOption) *THelper {
	t.Helper()
	h := &THelper{
		t:         t,
		ctx:       context.Background(),
		scheduler: NewFakeScheduler(),
		journal:   NewJournal(),
	}
	base := []component.RegistryOption{
		component.WithScheduler(h.scheduler),
		component.WithLogger(logger.NewNop()),
	}
	h.registry = component.NewRegistry(append(base, opts...)...)
	t.Cleanup(func() { h.registry.Shutdown(context.Background()) })
	return h
}

// WithContext sets the context passed to registry operations.
func (h *THelper) WithContext(ctx context.Context) *THelper {
	h.ctx = ctx
	return h
}

func (h *THelper) Context() context.Context { return h.ctx }
func (h *THelper) Registry() *component.Registry { return h.registry }
func (h *THelper) Scheduler() *FakeScheduler { return h.scheduler }
func (h *THelper) Journal() *Journal { return h.journal }
func (h *THelper) Recorder(name string) *Recorder { return NewRecorder(name, h.journal) }
func (h *THelper) UpdatingRecorder(name string) UpdatingRecorder {
	return NewUpdatingRecorder(name, h.journal)
}

// Register registers c and fails the test on error.
func (h *THelper) Register(name string, c component.Component, opts ...component.Option) {
	h.t.Helper()
	if err := h.registry.Register(name, c, opts...); err != nil {
		h.t.Fatalf("failed to register component %s: %v", name, err)
	}
}

// MustStart starts names, or everything, and fails the test on error.
func (h *THelper) MustStart(names ...string) {
	h.t.Helper()
	if err := h.registry.Start(h.ctx, names...); err != nil {
		h.t.Fatalf("failed to start components %v: %v", names, err)
	}
}

// AssertState fails the test unless name is in state want.
func (h *THelper) AssertState(name string, want component.State) {
	h.t.Helper()
	got, err := h.registry.State(name)
	if err != nil {
		h.t.Fatalf("state of %s: %v", name, err)
	}
	if got != want {
		h.t.Errorf("expected %s to be %s, got %s", name, want, got)
	}
}
