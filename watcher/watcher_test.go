package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/observability"
)

func newTestWatcher(t *testing.T, onChange ChangeFunc) (*Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("a: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	w, err := New(path, onChange, WithDebounce(20*time.Millisecond), WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Shutdown(context.Background()) })
	return w, path
}

func notify(ch chan struct{}) ChangeFunc {
	return func(context.Context) error {
		ch <- struct{}{}
		return nil
	}
}

func waitChange(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}

func TestNewValidation(t *testing.T) {
	noop := func(context.Context) error { return nil }
	if _, err := New("", noop); !errors.HasCode(err, errors.ErrCodeMissingField) {
		t.Errorf("expected MISSING_FIELD for empty path, got %v", err)
	}
	if _, err := New("config.yml", nil); !errors.HasCode(err, errors.ErrCodeMissingField) {
		t.Errorf("expected MISSING_FIELD for nil callback, got %v", err)
	}
	w, err := New("config.yml", noop)
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(w.Path()) || w.debounce != DefaultDebounce {
		t.Errorf("unexpected watcher %q %s", w.Path(), w.debounce)
	}
}

func TestWatcherDebouncesWrites(t *testing.T) {
	ch := make(chan struct{}, 10)
	w, path := newTestWatcher(t, notify(ch))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	for i := range 5 {
		if err := os.WriteFile(path, []byte(fmt.Sprintf("a: %d\n", i)), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	waitChange(t, ch)

	select {
	case <-ch:
		t.Error("expected a burst of writes to collapse into one change")
	case <-time.After(150 * time.Millisecond):
	}
	if w.Changes() != 1 {
		t.Errorf("expected 1 change, got %d", w.Changes())
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	ch := make(chan struct{}, 1)
	w, path := newTestWatcher(t, notify(ch))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(filepath.Dir(path), "other.yml")
	if err := os.WriteFile(other, []byte("b: 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
		t.Error("expected writes to other files to be ignored")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcherRestart(t *testing.T) {
	ch := make(chan struct{}, 10)
	w, path := newTestWatcher(t, notify(ch))
	ctx := context.Background()

	for round := range 2 {
		if err := w.Start(ctx); err != nil {
			t.Fatalf("round %d: Start: %v", round, err)
		}
		if err := w.Start(ctx); err != nil {
			t.Fatalf("round %d: second Start should be a no-op, got %v", round, err)
		}
		if err := os.WriteFile(path, []byte("a: 2\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		waitChange(t, ch)
		if err := w.Stop(ctx); err != nil {
			t.Fatalf("round %d: Stop: %v", round, err)
		}
	}

	if err := os.WriteFile(path, []byte("a: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
		t.Error("expected no changes while stopped")
	case <-time.After(150 * time.Millisecond):
	}
	if err := w.Stop(ctx); err != nil {
		t.Errorf("Stop on a stopped watcher should be a no-op, got %v", err)
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing", "config.yml"),
		func(context.Context) error { return nil }, WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail for a missing directory")
	}
	if h := w.CheckHealth(context.Background()); h.Status != observability.HealthStatusDown {
		t.Errorf("expected down after a failed start, got %s", h.Status)
	}
}

func TestWatcherHealthTracksReloadFailures(t *testing.T) {
	ch := make(chan struct{}, 10)
	var fail atomic.Bool
	fail.Store(true)
	w, path := newTestWatcher(t, func(context.Context) error {
		defer func() { ch <- struct{}{} }()
		if fail.Load() {
			return fmt.Errorf("bad yaml")
		}
		return nil
	})
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if h := w.CheckHealth(ctx); h.Status != observability.HealthStatusUp {
		t.Fatalf("expected up, got %s", h.Status)
	}

	_ = os.WriteFile(path, []byte(":"), 0o600)
	waitChange(t, ch)
	time.Sleep(10 * time.Millisecond)
	if h := w.CheckHealth(ctx); h.Status != observability.HealthStatusDegraded {
		t.Errorf("expected degraded after a failed reload, got %s", h.Status)
	}

	fail.Store(false)
	_ = os.WriteFile(path, []byte("a: 1\n"), 0o600)
	waitChange(t, ch)
	time.Sleep(10 * time.Millisecond)
	if h := w.CheckHealth(ctx); h.Status != observability.HealthStatusUp {
		t.Errorf("expected up after a good reload, got %s", h.Status)
	}
	if d := w.Describe(); d.Type != "watcher" || d.Details != path {
		t.Errorf("unexpected description %+v", d)
	}
}
