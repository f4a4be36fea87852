package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
)

// DefaultDriverSpec runs the driven function once per second.
const DefaultDriverSpec = "@every 1s"

// Driver calls a function on a cron schedule. Errors returned by the function
// are logged; they never stop the driver.
type Driver struct {
	spec string
	fn   func(ctx context.Context) error
	log  *logger.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewDriver creates a Driver for spec, which accepts standard five-field cron
// expressions and descriptors like "@every 5s" or "@hourly". An empty spec
// means DefaultDriverSpec.
func NewDriver(spec string, fn func(ctx context.Context) error, log *logger.Logger) (*Driver, error) {
	if spec == "" {
		spec = DefaultDriverSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, errors.InvalidInput("driver.spec", err.Error()).WithCause(err)
	}
	if log == nil {
		log = logger.Get("driver")
	}
	return &Driver{spec: spec, fn: fn, log: log}, nil
}

// Spec returns the cron spec the driver runs on.
func (d *Driver) Spec() string { return d.spec }

// Start begins calling the function. Calls receive a context derived from ctx
// that Stop cancels. Starting a running driver is a no-op.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cron != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cl := cronLogger{log: d.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(d.spec, func() { d.run(runCtx) }); err != nil {
		cancel()
		return errors.InvalidInput("driver.spec", err.Error()).WithCause(err)
	}
	c.Start()
	d.cron, d.cancel = c, cancel
	d.log.Debug("Update driver started", map[string]interface{}{"spec": d.spec})
	return nil
}

func (d *Driver) run(ctx context.Context) {
	if err := d.fn(ctx); err != nil {
		d.log.Exception("Update driver run failed", err)
	}
}

// Stop halts the driver and waits for an in-flight call to return, or for
// ctx to be done. Stopping a stopped driver is a no-op.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	c, cancel := d.cron, d.cancel
	d.cron, d.cancel = nil, nil
	d.mu.Unlock()
	if c == nil {
		return nil
	}

	done := c.Stop()
	select {
	case <-done.Done():
		cancel()
		d.log.Debug("Update driver stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}
