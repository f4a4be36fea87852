// Package observability wires OpenTelemetry tracing and metrics for
// lifecycle services.
//
// The registry opens a span per transition on the global tracer provider, so
// installing a provider with InitTracer is enough to export them:
//
//	tp, err := observability.InitTracer(ctx, &cfg.Tracing)
//	defer tp.Shutdown(ctx)
//
// LifecycleMetrics counts transitions and hook failures. bootstrap feeds it
// from registry events:
//
//	mp, err := observability.InitMeter(ctx, &cfg.Metrics)
//	m, err := observability.NewLifecycleMetrics(observability.Meter("lifecycled"))
//	m.RecordTransition(ctx, "db", "start", "Stopped", "Started", took)
//
// Health values aggregate into a ServiceHealth for the admin /health route.
package observability
