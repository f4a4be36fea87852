package component

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/scheduler"
)

const tracerName = "github.com/kbukum/lifecycle/component"

// Registry tracks named components and drives their lifecycle.
//
// The maps are guarded by mu and each record guards its own state, so timers
// may fire on other goroutines. Hooks always run with mu released: a hook may
// register or deregister any component, its own included. A transition or
// update of a component whose own hook is still running is skipped, not
// queued. Every bulk operation snapshots
// names in registration order first and skips names removed meanwhile.
type Registry struct {
	mu        sync.RWMutex
	records   map[string]*record
	deps      map[string][]string
	order     []string
	observers []Observer

	scheduler scheduler.Scheduler
	log       *logger.Logger
	tracer    trace.Tracer
	unique    bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithScheduler sets the timer source for update-capable components.
// The default is a scheduler.Ticker.
func WithScheduler(s scheduler.Scheduler) RegistryOption {
	return func(r *Registry) { r.scheduler = s }
}

// WithLogger sets the registry logger.
func WithLogger(l *logger.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// WithUniqueNames makes Register reject a name that is already registered
// instead of replacing its record.
func WithUniqueNames() RegistryOption {
	return func(r *Registry) { r.unique = true }
}

// WithObserver adds observers that receive every registry event.
func WithObserver(obs ...Observer) RegistryOption {
	return func(r *Registry) { r.observers = append(r.observers, obs...) }
}

// WithTracerProvider sets the provider for lifecycle spans. The default is
// the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) RegistryOption {
	return func(r *Registry) { r.tracer = tp.Tracer(tracerName) }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		records: make(map[string]*record),
		deps:    make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.scheduler == nil {
		r.scheduler = scheduler.NewTicker()
	}
	if r.log == nil {
		r.log = logger.WithComponent("registry")
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	return r
}

// Observe adds an observer after construction.
func (r *Registry) Observe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Register adds c under name. Re-registering a name replaces the previous
// record in place: its timer is canceled and no hooks run. With
// WithUniqueNames the duplicate is rejected with ALREADY_EXISTS instead.
func (r *Registry) Register(name string, c Component, opts ...Option) error {
	if name == "" {
		return errors.MissingField("name")
	}
	if c == nil {
		return errors.InvalidInput("component", fmt.Sprintf("component %q is nil", name))
	}
	var reg registration
	for _, opt := range opts {
		opt(&reg)
	}
	rec := newRecord(name, c, reg)

	r.mu.Lock()
	prev, exists := r.records[name]
	if exists && r.unique {
		r.mu.Unlock()
		return errors.AlreadyExists("component", name)
	}
	r.records[name] = rec
	if len(rec.deps) > 0 {
		r.deps[name] = rec.deps
	} else {
		delete(r.deps, name)
	}
	if !exists {
		r.order = append(r.order, name)
	}
	r.mu.Unlock()

	if exists {
		was := prev.force()
		r.log.Warn("Component replaced", map[string]interface{}{
			logger.FieldComponent:   name,
			"previous_id":           prev.id.String(),
			logger.FieldComponentID: rec.id.String(),
			logger.FieldState:       was.String(),
		})
	}
	r.log.Debug("Component registered", map[string]interface{}{
		logger.FieldComponent:   name,
		logger.FieldComponentID: rec.id.String(),
		logger.FieldInterval:    rec.interval.String(),
		"dependencies":          rec.deps,
		"updatable":             rec.updater != nil,
	})
	r.emit(context.Background(), rec, Event{Kind: EventRegistered})
	return nil
}

// Deregister stops the named component and removes it. An unknown name is a
// no-op. When the stop hook fails the component stays registered and the
// error is returned.
func (r *Registry) Deregister(ctx context.Context, name string) error {
	rec, ok := r.record(name)
	if !ok {
		return nil
	}
	if err := r.transition(ctx, rec, OpStop); err != nil {
		return err
	}

	r.mu.Lock()
	if r.records[name] != rec {
		// Replaced while stopping; the new record stays.
		r.mu.Unlock()
		return nil
	}
	delete(r.records, name)
	delete(r.deps, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	r.mu.Unlock()

	// A deregister issued from rec's own start or stop hook skipped the stop
	// above; force drops that hook's result so no timer outlives the record.
	rec.force()
	r.log.Debug("Component deregistered", map[string]interface{}{
		logger.FieldComponent:   name,
		logger.FieldComponentID: rec.id.String(),
	})
	r.emit(ctx, rec, Event{Kind: EventDeregistered})
	return nil
}

// Get returns the component registered under name.
func (r *Registry) Get(name string) (Component, error) {
	rec, ok := r.record(name)
	if !ok {
		return nil, errors.NotFound("component", name)
	}
	return rec.component, nil
}

// State returns the current state of the named component.
func (r *Registry) State(name string) (State, error) {
	rec, ok := r.record(name)
	if !ok {
		return Stopped, errors.NotFound("component", name)
	}
	return rec.State(), nil
}

// Info returns a view of the named component.
func (r *Registry) Info(name string) (Info, error) {
	rec, ok := r.record(name)
	if !ok {
		return Info{}, errors.NotFound("component", name)
	}
	return rec.info(), nil
}

// List returns views of all components in registration order.
func (r *Registry) List() []Info {
	names := r.Names()
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		if rec, ok := r.record(name); ok {
			infos = append(infos, rec.info())
		}
	}
	return infos
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Dependencies returns the declared dependencies of name, or nil when it has
// none or is not registered.
func (r *Registry) Dependencies(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.deps[name])
}

// StartComponent starts name after starting its dependencies, depth-first in
// declared order. A dependency already on the current walk fails with
// CYCLE_DETECTED; an unknown one fails with NOT_FOUND. Starting a component
// that is not Stopped is a no-op.
func (r *Registry) StartComponent(ctx context.Context, name string) error {
	return r.startComponent(ctx, name, nil)
}

func (r *Registry) startComponent(ctx context.Context, name string, path []string) error {
	if slices.Contains(path, name) {
		cycle := append(slices.Clone(path), name)
		r.log.Warn("Dependency cycle detected", map[string]interface{}{
			logger.FieldComponent: name,
			"path":                cycle,
		})
		return errors.CycleDetected(cycle)
	}

	r.mu.RLock()
	_, ok := r.records[name]
	deps := slices.Clone(r.deps[name])
	r.mu.RUnlock()
	if !ok {
		err := errors.NotFound("component", name)
		if len(path) > 0 {
			err = err.WithDetail("dependent", path[len(path)-1])
		}
		return err
	}

	path = append(path, name)
	for _, dep := range deps {
		if err := r.startComponent(ctx, dep, path); err != nil {
			return err
		}
	}

	// A dependency hook may have replaced or removed the record.
	rec, ok := r.record(name)
	if !ok {
		return errors.NotFound("component", name)
	}
	return r.transition(ctx, rec, OpStart)
}

// StopComponent stops name. Dependents are not stopped.
func (r *Registry) StopComponent(ctx context.Context, name string) error {
	return r.apply(ctx, name, OpStop)
}

// PauseComponent pauses name if it is Started. Its timer is canceled and no
// hook runs.
func (r *Registry) PauseComponent(ctx context.Context, name string) error {
	return r.apply(ctx, name, OpPause)
}

// ResumeComponent resumes name if it is Paused, running its Start hook again.
func (r *Registry) ResumeComponent(ctx context.Context, name string) error {
	return r.apply(ctx, name, OpResume)
}

func (r *Registry) apply(ctx context.Context, name string, op Operation) error {
	rec, ok := r.record(name)
	if !ok {
		return errors.NotFound("component", name)
	}
	return r.transition(ctx, rec, op)
}

// Start starts the named components, or every component when names is empty.
// The first failure aborts the fan-out; components started before it stay
// Started.
func (r *Registry) Start(ctx context.Context, names ...string) error {
	return r.fanOut(ctx, names, r.StartComponent)
}

// Stop stops the named components, or every component.
func (r *Registry) Stop(ctx context.Context, names ...string) error {
	return r.fanOut(ctx, names, r.StopComponent)
}

// Pause pauses the named components, or every Started component.
func (r *Registry) Pause(ctx context.Context, names ...string) error {
	return r.fanOut(ctx, names, r.PauseComponent)
}

// Resume resumes the named components, or every Paused component.
func (r *Registry) Resume(ctx context.Context, names ...string) error {
	return r.fanOut(ctx, names, r.ResumeComponent)
}

func (r *Registry) fanOut(ctx context.Context, names []string, fn func(context.Context, string) error) error {
	if len(names) > 0 {
		for _, name := range names {
			if err := fn(ctx, name); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range r.Names() {
		if !r.has(name) {
			continue
		}
		if err := fn(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Update calls Update on every Started component that implements Updater.
// The first failure is returned and ends the fan-out.
func (r *Registry) Update(ctx context.Context) error {
	for _, name := range r.Names() {
		rec, ok := r.record(name)
		if !ok || rec.updater == nil {
			continue
		}
		if err := r.update(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops every component, then runs every Shutdown hook. Failures in
// either phase are logged and recorded; the loop always visits every
// component. A component whose stop hook fails is forced to Stopped.
func (r *Registry) Shutdown(ctx context.Context) *ShutdownReport {
	report := newShutdownReport(uuid.NewString())
	ctx, span := r.tracer.Start(ctx, "component.shutdown",
		trace.WithAttributes(attribute.String("shutdown.id", report.ID)))
	defer span.End()

	r.log.Info("Shutting down components", map[string]interface{}{
		"shutdown_id": report.ID,
		"count":       r.Len(),
	})

	for _, name := range r.Names() {
		rec, ok := r.record(name)
		if !ok {
			continue
		}
		res := report.result(name)
		if err := r.transition(ctx, rec, OpStop); err != nil {
			res.StopErr = err
			r.log.Exception("Component stop failed during shutdown", err, map[string]interface{}{
				logger.FieldComponent: name,
				logger.FieldPhase:     "stop",
			})
			r.forceStop(ctx, rec)
		} else if rec.State() != Stopped {
			// Another transition of rec was still running.
			r.forceStop(ctx, rec)
		}
	}

	for _, name := range r.Names() {
		rec, ok := r.record(name)
		if !ok {
			continue
		}
		res := report.result(name)
		start := time.Now()
		if err := callHook(ctx, rec.component.Shutdown); err != nil {
			res.ShutdownErr = errors.HookFailed(name, OpShutdown.hook(), err)
			r.log.Exception("Component shutdown hook failed", err, map[string]interface{}{
				logger.FieldComponent: name,
				logger.FieldPhase:     "shutdown",
			})
			r.emit(ctx, rec, Event{Kind: EventHookFailed, Op: OpShutdown, Err: res.ShutdownErr, Duration: time.Since(start)})
		}
	}

	report.FinishedAt = time.Now()
	failed := len(report.Failed())
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d components failed", failed))
	}
	r.log.Info("Components shut down", map[string]interface{}{
		"shutdown_id":        report.ID,
		"failed":             failed,
		logger.FieldDuration: report.Duration().Milliseconds(),
	})
	return report
}

// transition applies op to rec per the state table. Ops that do not apply to
// the current state return nil without running anything, as do ops on a
// record whose own transition is still running. A hook can therefore call
// Stop, Start or Deregister for its own component without blocking.
func (r *Registry) transition(ctx context.Context, rec *record, op Operation) error {
	from, to, gen, ok := rec.begin(op)
	if !ok {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "component."+op.String(), trace.WithAttributes(
		attribute.String("component.name", rec.name),
		attribute.String("component.id", rec.id.String()),
		attribute.String("component.from", from.String()),
		attribute.String("component.to", to.String()),
	))
	defer span.End()

	var took time.Duration
	if hook := r.hookFor(rec, op); hook != nil {
		start := time.Now()
		err := callHook(ctx, hook)
		took = time.Since(start)
		if err != nil {
			rec.abort()
			appErr := errors.HookFailed(rec.name, op.hook(), err)
			span.RecordError(err)
			span.SetStatus(codes.Error, appErr.Message)
			r.log.Debug("Component hook failed", map[string]interface{}{
				logger.FieldComponent: rec.name,
				logger.FieldOperation: op.String(),
				logger.FieldError:     err.Error(),
			})
			r.emit(ctx, rec, Event{Kind: EventHookFailed, Op: op, From: from, To: from, Err: appErr, Duration: took})
			return appErr
		}
	}

	if !rec.finish(gen, to, func() scheduler.Timer { return r.arm(ctx, rec) }) {
		r.log.Debug("Component transition superseded", map[string]interface{}{
			logger.FieldComponent: rec.name,
			logger.FieldOperation: op.String(),
		})
		return nil
	}
	r.log.Debug("Component "+stateVerb(to), map[string]interface{}{
		logger.FieldComponent: rec.name,
		logger.FieldFrom:      from.String(),
		logger.FieldTo:        to.String(),
	})
	r.emit(ctx, rec, Event{Kind: EventTransition, Op: op, From: from, To: to, Duration: took})
	return nil
}

func (r *Registry) hookFor(rec *record, op Operation) func(context.Context) error {
	switch op {
	case OpStart, OpResume:
		return rec.component.Start
	case OpStop:
		return rec.component.Stop
	}
	return nil
}

// forceStop moves rec to Stopped without running its stop hook.
func (r *Registry) forceStop(ctx context.Context, rec *record) {
	if from := rec.force(); from != Stopped {
		r.emit(ctx, rec, Event{Kind: EventTransition, Op: OpStop, From: from, To: Stopped})
	}
}

// arm schedules rec's timer. Ticks run with a non-cancelable copy of ctx
// that drops the arming span, which ends before the first tick.
func (r *Registry) arm(ctx context.Context, rec *record) scheduler.Timer {
	tickCtx := trace.ContextWithSpanContext(context.WithoutCancel(ctx), trace.SpanContext{})
	return r.scheduler.Schedule(rec.interval, func() {
		if err := r.update(tickCtx, rec); err != nil {
			r.log.Exception("Component update failed", err, map[string]interface{}{
				logger.FieldComponent: rec.name,
				logger.FieldOperation: OpUpdate.String(),
			})
		}
	})
}

// update runs rec's Update hook when rec is Started. The call is skipped
// while another hook of rec is running.
func (r *Registry) update(ctx context.Context, rec *record) error {
	if !rec.beginUpdate() {
		return nil
	}
	defer rec.endUpdate()

	start := time.Now()
	err := callHook(ctx, rec.updater.Update)
	if err == nil {
		return nil
	}
	appErr := errors.HookFailed(rec.name, OpUpdate.hook(), err)
	r.emit(ctx, rec, Event{Kind: EventHookFailed, Op: OpUpdate, From: Started, To: Started, Err: appErr, Duration: time.Since(start)})
	return appErr
}

func (r *Registry) emit(ctx context.Context, rec *record, e Event) {
	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()
	if len(observers) == 0 {
		return
	}
	e.Component = rec.name
	e.ID = rec.id.String()
	e.Time = time.Now()
	for _, o := range observers {
		o.OnEvent(ctx, e)
	}
}

func (r *Registry) record(name string) (*record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok
}

func (r *Registry) has(name string) bool {
	_, ok := r.record(name)
	return ok
}

// callHook runs fn, turning a panic into an error.
func callHook(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

func stateVerb(s State) string {
	switch s {
	case Started:
		return "started"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}
