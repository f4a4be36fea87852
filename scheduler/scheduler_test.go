package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestTickerFiresRepeatedly(t *testing.T) {
	var calls atomic.Int32
	timer := NewTicker().Schedule(10*time.Millisecond, func() { calls.Add(1) })
	defer timer.Cancel()

	waitFor(t, time.Second, func() bool { return calls.Load() >= 3 })
}

func TestTickerDoesNotFireImmediately(t *testing.T) {
	var calls atomic.Int32
	timer := NewTicker().Schedule(time.Hour, func() { calls.Add(1) })
	defer timer.Cancel()

	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("expected no call before the first interval, got %d", calls.Load())
	}
}

func TestTickerCancelStopsCallbacks(t *testing.T) {
	var calls atomic.Int32
	timer := NewTicker().Schedule(5*time.Millisecond, func() { calls.Add(1) })
	waitFor(t, time.Second, func() bool { return calls.Load() >= 1 })

	timer.Cancel()
	timer.Cancel()
	time.Sleep(10 * time.Millisecond)
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != after {
		t.Errorf("expected no calls after cancel, went from %d to %d", after, calls.Load())
	}
}

func TestFuncAdapter(t *testing.T) {
	var gotInterval time.Duration
	var s Scheduler = Func(func(interval time.Duration, fn func()) Timer {
		gotInterval = interval
		fn()
		return NewTicker().Schedule(time.Hour, func() {})
	})
	called := false
	s.Schedule(3*time.Second, func() { called = true }).Cancel()
	if gotInterval != 3*time.Second || !called {
		t.Errorf("expected adapter to forward, got interval=%s called=%v", gotInterval, called)
	}
}

func TestCronScheduleAndCancel(t *testing.T) {
	c := NewCron(logger.NewNop())
	defer c.Stop(context.Background())

	t1 := c.Schedule(time.Second, func() {})
	t2 := c.Schedule(100*time.Millisecond, func() {})
	waitFor(t, time.Second, func() bool { return c.Len() == 2 })

	t1.Cancel()
	t1.Cancel()
	waitFor(t, time.Second, func() bool { return c.Len() == 1 })

	t2.Cancel()
	waitFor(t, time.Second, func() bool { return c.Len() == 0 })
}

func TestCronFires(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a one-second cron tick")
	}
	c := NewCron(logger.NewNop())
	defer c.Stop(context.Background())

	var calls atomic.Int32
	timer := c.Schedule(time.Second, func() { calls.Add(1) })
	defer timer.Cancel()

	waitFor(t, 3*time.Second, func() bool { return calls.Load() >= 1 })
}

func TestCronStopIdempotent(t *testing.T) {
	c := NewCron(logger.NewNop())
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	c.Schedule(time.Second, func() {}).Cancel()
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestNewDriverInvalidSpec(t *testing.T) {
	_, err := NewDriver("every now and then", func(context.Context) error { return nil }, logger.NewNop())
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestNewDriverDefaultSpec(t *testing.T) {
	d, err := NewDriver("", func(context.Context) error { return nil }, logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Spec() != DefaultDriverSpec {
		t.Errorf("expected default spec, got %q", d.Spec())
	}
}

func TestDriverRunsAndSurvivesErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for one-second cron ticks")
	}
	var calls atomic.Int32
	d, err := NewDriver("@every 1s", func(ctx context.Context) error {
		calls.Add(1)
		return fmt.Errorf("update failed")
	}, logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}
	waitFor(t, 4*time.Second, func() bool { return calls.Load() >= 2 })

	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	after := calls.Load()
	time.Sleep(1500 * time.Millisecond)
	if calls.Load() != after {
		t.Errorf("expected no calls after stop, went from %d to %d", after, calls.Load())
	}
}

func TestDriverStopBeforeStart(t *testing.T) {
	d, _ := NewDriver("@hourly", func(context.Context) error { return nil }, logger.NewNop())
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
