package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/lifecycle/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
	// Environment is the deployment environment (development, staging, production).
	Environment string `yaml:"environment" mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure allows insecure connections (for development).
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The caller shuts the provider down on exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(ctx, config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// LifecycleMetrics holds the instruments for component lifecycle activity.
type LifecycleMetrics struct {
	transitions  metric.Int64Counter
	hookFailures metric.Int64Counter
	hookDuration metric.Float64Histogram
	started      metric.Int64UpDownCounter
	rpcCalls     metric.Int64Counter
}

// NewLifecycleMetrics creates the lifecycle instruments on meter.
func NewLifecycleMetrics(meter metric.Meter) (*LifecycleMetrics, error) {
	transitions, err := meter.Int64Counter("component.transitions",
		metric.WithDescription("Completed component state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating component.transitions counter: %w", err)
	}

	hookFailures, err := meter.Int64Counter("component.hook.failures",
		metric.WithDescription("Component hooks that returned an error or panicked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating component.hook.failures counter: %w", err)
	}

	hookDuration, err := meter.Float64Histogram("component.hook.duration",
		metric.WithDescription("Duration of component hooks in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating component.hook.duration histogram: %w", err)
	}

	started, err := meter.Int64UpDownCounter("component.started",
		metric.WithDescription("Components currently in the Started state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating component.started counter: %w", err)
	}

	rpcCalls, err := meter.Int64Counter("rpc.calls",
		metric.WithDescription("Exported method calls by method and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rpc.calls counter: %w", err)
	}

	return &LifecycleMetrics{
		transitions:  transitions,
		hookFailures: hookFailures,
		hookDuration: hookDuration,
		started:      started,
		rpcCalls:     rpcCalls,
	}, nil
}

// RecordTransition records a completed transition and the hook time it took.
func (m *LifecycleMetrics) RecordTransition(ctx context.Context, component, op, from, to string, took time.Duration) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrComponentName, component),
		attribute.String(AttrOperation, op),
		attribute.String(AttrFromState, from),
		attribute.String(AttrToState, to),
	))
	m.hookDuration.Record(ctx, took.Seconds(), metric.WithAttributes(
		attribute.String(AttrComponentName, component),
		attribute.String(AttrOperation, op),
	))
	switch {
	case to == "Started" && from != "Started":
		m.started.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrComponentName, component)))
	case from == "Started" && to != "Started":
		m.started.Add(ctx, -1, metric.WithAttributes(attribute.String(AttrComponentName, component)))
	}
}

// RecordHookFailure records a failed hook.
func (m *LifecycleMetrics) RecordHookFailure(ctx context.Context, component, op string, took time.Duration) {
	m.hookFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrComponentName, component),
		attribute.String(AttrOperation, op),
	))
	m.hookDuration.Record(ctx, took.Seconds(), metric.WithAttributes(
		attribute.String(AttrComponentName, component),
		attribute.String(AttrOperation, op),
	))
}

// RecordRPCCall records one exported method call.
func (m *LifecycleMetrics) RecordRPCCall(ctx context.Context, method, status string) {
	m.rpcCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrRPCMethod, method),
		attribute.String("status", status),
	))
}
