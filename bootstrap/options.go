package bootstrap

import (
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/scheduler"
)

// Option configures the App during creation.
// Options are non-generic so they can be used with any config type.
type Option func(*appOptions)

// appOptions collects all option values before applying to App.
type appOptions struct {
	logger           *logger.Logger
	gracefulTimeout  *time.Duration
	schedulerKind    scheduler.Kind
	updateSpec       string
	eventsPath       string
	metricsNamespace string
	meter            metric.Meter
	registryOpts     []component.RegistryOption
}

// resolveOptions applies all options and returns the collected values.
func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is auto-initialized from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithScheduler picks the timer source for update-capable components.
// The default is scheduler.KindTicker.
func WithScheduler(kind scheduler.Kind) Option {
	return func(o *appOptions) {
		o.schedulerKind = kind
	}
}

// WithUpdateDriver runs a registry-wide Update on the cron spec while the
// app runs. Without it only per-component timers drive updates.
func WithUpdateDriver(spec string) Option {
	return func(o *appOptions) {
		o.updateSpec = spec
	}
}

// WithEventStream registers an SSE component that streams registry events
// and serves them on path.
func WithEventStream(path string) Option {
	return func(o *appOptions) {
		o.eventsPath = path
	}
}

// WithMetricsNamespace sets the Prometheus namespace. The default is derived
// from the service name.
func WithMetricsNamespace(ns string) Option {
	return func(o *appOptions) {
		o.metricsNamespace = ns
	}
}

// WithMeter sets the OpenTelemetry meter for lifecycle instruments. The
// default is a meter from the global provider.
func WithMeter(m metric.Meter) Option {
	return func(o *appOptions) {
		o.meter = m
	}
}

// WithRegistryOptions passes extra options to component.NewRegistry.
func WithRegistryOptions(opts ...component.RegistryOption) Option {
	return func(o *appOptions) {
		o.registryOpts = append(o.registryOpts, opts...)
	}
}
