package bootstrap

import (
	"context"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/observability"
)

// TelemetryObserver feeds registry events into the OpenTelemetry lifecycle
// instruments.
func TelemetryObserver(m *observability.LifecycleMetrics) component.Observer {
	return component.ObserverFunc(func(ctx context.Context, e component.Event) {
		switch e.Kind {
		case component.EventTransition:
			m.RecordTransition(ctx, e.Component, e.Op.String(), e.From.String(), e.To.String(), e.Duration)
		case component.EventHookFailed:
			m.RecordHookFailure(ctx, e.Component, e.Op.String(), e.Duration)
		}
	})
}
