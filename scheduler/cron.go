package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kbukum/lifecycle/logger"
)

// Cron schedules callbacks as jobs on a shared robfig/cron runner.
// Intervals below one second are rounded up to one second.
type Cron struct {
	cron *cron.Cron
	log  *logger.Logger

	mu      sync.Mutex
	started bool
}

// NewCron creates a Cron scheduler. The runner starts on the first Schedule.
func NewCron(log *logger.Logger) *Cron {
	if log == nil {
		log = logger.Get("scheduler")
	}
	cl := cronLogger{log: log}
	return &Cron{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
	}
}

// Schedule implements Scheduler.
func (c *Cron) Schedule(interval time.Duration, fn func()) Timer {
	id := c.cron.Schedule(cron.Every(interval), cron.FuncJob(fn))

	c.mu.Lock()
	if !c.started {
		c.cron.Start()
		c.started = true
	}
	c.mu.Unlock()

	return &cronTimer{cron: c.cron, id: id}
}

// Len returns the number of armed timers.
func (c *Cron) Len() int { return len(c.cron.Entries()) }

// Stop halts the runner and waits for running jobs until ctx is done.
func (c *Cron) Stop(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.started = false
	c.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-c.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronTimer struct {
	once sync.Once
	cron *cron.Cron
	id   cron.EntryID
}

func (t *cronTimer) Cancel() {
	t.once.Do(func() { t.cron.Remove(t.id) })
}

// cronLogger routes robfig/cron's logr-style calls to logger.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, logger.Fields(keysAndValues...))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Exception("cron: "+msg, err, logger.Fields(keysAndValues...))
}
