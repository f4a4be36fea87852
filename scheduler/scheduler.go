package scheduler

import (
	"time"
)

// Timer is a handle to an armed periodic callback.
type Timer interface {
	// Cancel stops future callbacks. Calling it more than once is a no-op.
	Cancel()
}

// Scheduler arms periodic callbacks.
type Scheduler interface {
	// Schedule calls fn every interval until the returned Timer is canceled.
	// The first call happens one interval after arming.
	Schedule(interval time.Duration, fn func()) Timer
}

// Func adapts a plain function to Scheduler.
type Func func(interval time.Duration, fn func()) Timer

// Schedule calls f.
func (f Func) Schedule(interval time.Duration, fn func()) Timer { return f(interval, fn) }

// Kind names a Scheduler implementation in configuration.
type Kind string

const (
	KindTicker Kind = "ticker"
	KindCron   Kind = "cron"
)
