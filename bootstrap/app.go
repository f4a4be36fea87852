package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/metrics"
	"github.com/kbukum/lifecycle/observability"
	"github.com/kbukum/lifecycle/scheduler"
	"github.com/kbukum/lifecycle/sse"
)

// EventsComponentName is the name the event stream is registered under.
const EventsComponentName = "events"

// App represents a generic application with uniform lifecycle management.
// The type parameter C is the config type, which must satisfy the Config interface.
// Any struct embedding config.ServiceConfig automatically satisfies Config.
//
// Example:
//
//	app, err := bootstrap.NewApp(&myConfig)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*MyConfig]) error {
//	    // a.Cfg is *MyConfig, fully typed
//	    return nil
//	})
//	app.Run(context.Background())
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger
	Summary    *Summary

	// Metrics is the Prometheus collector observing Components.
	Metrics *metrics.Collector
	// Telemetry holds the OpenTelemetry lifecycle instruments.
	Telemetry *observability.LifecycleMetrics
	// Events is nil unless WithEventStream was given.
	Events *sse.Component

	scheduler       scheduler.Scheduler
	driver          *scheduler.Driver
	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App[C]) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp creates a new application instance from a typed config.
// It applies defaults, validates the config, initializes the logger and
// builds the component registry.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	base := cfg.GetServiceConfig()
	o := resolveOptions(opts)

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	// Logger: use custom if provided, otherwise init from config.
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(&base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}

	sched, err := newScheduler(o.schedulerKind, app.Logger)
	if err != nil {
		return nil, err
	}
	app.scheduler = sched

	meter := o.meter
	if meter == nil {
		meter = observability.Meter(base.Name)
	}
	app.Telemetry, err = observability.NewLifecycleMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("lifecycle metrics: %w", err)
	}

	ns := o.metricsNamespace
	if ns == "" {
		ns = metricsNamespace(base.Name)
	}
	app.Metrics = metrics.NewCollector(ns)

	observers := []component.Observer{app.Metrics, TelemetryObserver(app.Telemetry)}
	if o.eventsPath != "" {
		app.Events = sse.NewComponent(o.eventsPath)
		observers = append(observers, app.Events.Observer())
	}

	regOpts := []component.RegistryOption{
		component.WithScheduler(sched),
		component.WithLogger(app.Logger.WithComponent("registry")),
		component.WithObserver(observers...),
	}
	app.Components = component.NewRegistry(append(regOpts, o.registryOpts...)...)
	component.SetDefault(app.Components)

	if app.Events != nil {
		if err := app.Components.Register(EventsComponentName, app.Events); err != nil {
			return nil, err
		}
	}

	if o.updateSpec != "" {
		app.driver, err = scheduler.NewDriver(o.updateSpec, app.Components.Update, app.Logger.WithComponent("driver"))
		if err != nil {
			return nil, err
		}
	}

	app.Summary = NewSummary(base.Name, base.Version)
	return app, nil
}

func newScheduler(kind scheduler.Kind, log *logger.Logger) (scheduler.Scheduler, error) {
	switch kind {
	case "", scheduler.KindTicker:
		return scheduler.NewTicker(), nil
	case scheduler.KindCron:
		return scheduler.NewCron(log.WithComponent("scheduler")), nil
	default:
		return nil, errors.InvalidInput("scheduler",
			fmt.Sprintf("unknown scheduler %q (want %s or %s)", kind, scheduler.KindTicker, scheduler.KindCron))
	}
}

// metricsNamespace maps a service name onto the Prometheus name alphabet.
func metricsNamespace(name string) string {
	ns := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if ns == "" || (ns[0] >= '0' && ns[0] <= '9') {
		ns = "lifecycle_" + ns
	}
	return ns
}

// Scheduler returns the timer source shared by the registry.
func (a *App[C]) Scheduler() scheduler.Scheduler {
	return a.scheduler
}

// Driver returns the update driver, or nil when none is configured.
func (a *App[C]) Driver() *scheduler.Driver {
	return a.driver
}

// RegisterComponent adds a component to the application's registry.
func (a *App[C]) RegisterComponent(name string, c component.Component, opts ...component.Option) error {
	return a.Components.Register(name, c, opts...)
}

// OnConfigure registers a callback to run during the configure phase.
// Use this to set up business-layer dependencies after infrastructure is started.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// ReadyCheck verifies that every registered component is Started and that
// none that checks its own health reports down.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var issues []string
	for _, info := range a.Components.List() {
		if info.State != component.Started {
			issues = append(issues, info.Name+"="+info.State.String())
			continue
		}
		c, err := a.Components.Get(info.Name)
		if err != nil {
			continue
		}
		if hc, ok := c.(observability.HealthChecker); ok {
			if h := hc.CheckHealth(ctx); h.Status == observability.HealthStatusDown {
				issues = append(issues, fmt.Sprintf("%s=%s(%s)", info.Name, h.Status, h.Message))
			}
		}
	}
	if len(issues) > 0 {
		return fmt.Errorf("components not ready: %v", issues)
	}
	return nil
}

// Run executes the full application lifecycle for long-running services:
// Start components, OnStart hooks, Configure, ReadyCheck, update driver,
// OnReady hooks, block on signal, OnStop hooks, registry Shutdown.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return stderrors.Join(err, a.stop(ctx))
	}

	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.stop(ctx)
}

// RunTask executes a finite task with the full bootstrap lifecycle.
// Unlike Run, it does not block on shutdown signals: it runs the task
// function and shuts down when the task completes or the context is
// canceled (e.g., via SIGINT/SIGTERM).
//
// Example:
//
//	app, _ := bootstrap.NewApp(&cfg)
//	app.RunTask(ctx, func(ctx context.Context) error {
//	    return component.Update(ctx)
//	})
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return stderrors.Join(err, a.stop(ctx))
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("Received signal, canceling task", map[string]interface{}{
				"signal": sig.String(),
			})
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)

	if stopErr := a.stop(ctx); stopErr != nil {
		if taskErr != nil {
			return taskErr
		}
		return stopErr
	}
	return taskErr
}

// startup performs the common initialization sequence shared by Run and RunTask.
func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()

	a.Logger.Info("Starting application", map[string]interface{}{
		"name":       a.Name,
		"version":    a.Version,
		"components": a.Components.Len(),
	})

	if err := a.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	if err := a.configure(ctx); err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if a.driver != nil {
		if err := a.driver.Start(ctx); err != nil {
			return fmt.Errorf("update driver: %w", err)
		}
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.DisplaySummary()
	return nil
}

// initialize starts all registered components (Phase 1).
func (a *App[C]) initialize(ctx context.Context) error {
	a.Logger.Info("Phase 1: Starting components")

	if err := a.Components.Start(ctx); err != nil {
		return fmt.Errorf("failed to start components: %w", err)
	}

	a.Logger.Info("Phase 1: All components started")
	return nil
}

// DisplaySummary prints the startup summary from the live registry.
func (a *App[C]) DisplaySummary() {
	a.Summary.DisplaySummary(a.Components)
}

// configure runs registered configuration callbacks (Phase 2).
func (a *App[C]) configure(ctx context.Context) error {
	if len(a.onConfigure) == 0 {
		return nil
	}

	a.Logger.Info("Phase 2: Running configuration callbacks", map[string]interface{}{
		"count": len(a.onConfigure),
	})

	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return err
		}
	}

	a.Logger.Info("Phase 2: Configuration complete")
	return nil
}

// WaitForSignal blocks until an OS interrupt/term signal or context cancellation.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal, graceful shutdown starting", map[string]interface{}{
			"signal": sig.String(),
		})
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown performs graceful shutdown. Use when managing your own lifecycle.
func (a *App[C]) Shutdown(ctx context.Context) error {
	return a.stop(ctx)
}

// stop shuts the registry down within the graceful timeout. Cancellation of
// ctx does not cut shutdown short; the timeout does.
func (a *App[C]) stop(ctx context.Context) error {
	a.Logger.Info("Shutting down application", map[string]interface{}{
		"timeout": a.gracefulTimeout.String(),
	})

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.gracefulTimeout)
	defer cancel()

	var errs []error

	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Exception("OnStop hook error", err)
		errs = append(errs, err)
	}

	if a.driver != nil {
		if err := a.driver.Stop(ctx); err != nil {
			a.Logger.Exception("Update driver stop error", err)
			errs = append(errs, err)
		}
	}

	report := a.Components.Shutdown(ctx)
	for _, res := range report.Failed() {
		fields := map[string]interface{}{logger.FieldComponent: res.Name}
		if res.StopErr != nil {
			fields["stop_error"] = res.StopErr.Error()
		}
		if res.ShutdownErr != nil {
			fields["shutdown_error"] = res.ShutdownErr.Error()
		}
		a.Logger.Error("Component shutdown failed", fields)
	}
	if err := report.Err(); err != nil {
		errs = append(errs, err)
	}

	if c, ok := a.scheduler.(*scheduler.Cron); ok {
		if err := c.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	a.Logger.Info("Application shutdown complete", map[string]interface{}{
		"report_id":  report.ID,
		"components": len(report.Results),
		"failed":     len(report.Failed()),
		"duration":   report.Duration().String(),
	})
	return stderrors.Join(errs...)
}
