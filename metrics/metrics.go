// Package metrics exports component lifecycle activity as Prometheus metrics.
//
// A Collector is a component.Observer with its own prometheus.Registry:
//
//	c := metrics.NewCollector("lifecycled")
//	reg := component.NewRegistry(component.WithObserver(c))
//	router.GET("/metrics", gin.WrapH(c.Handler()))
package metrics

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kbukum/lifecycle/component"
)

// Collector records registry events.
type Collector struct {
	registry *prometheus.Registry

	state        *prometheus.GaugeVec
	transitions  *prometheus.CounterVec
	hookFailures *prometheus.CounterVec
	hookDuration *prometheus.HistogramVec
	registered   prometheus.Gauge

	mu    sync.Mutex
	names map[string]struct{}
}

var _ component.Observer = (*Collector)(nil)

// NewCollector creates a collector whose metrics live under namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "lifecycle"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		names:    make(map[string]struct{}),
	}

	c.state = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "component",
			Name:      "state",
			Help:      "Current state of a component (0=stopped, 1=started, 2=paused)",
		},
		[]string{"component"},
	)

	c.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "component",
			Name:      "transitions_total",
			Help:      "Completed state transitions",
		},
		[]string{"component", "op", "to"},
	)

	c.hookFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "component",
			Name:      "hook_failures_total",
			Help:      "Hooks that returned an error or panicked",
		},
		[]string{"component", "op"},
	)

	c.hookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "component",
			Name:      "hook_duration_seconds",
			Help:      "Time spent in component hooks",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
		},
		[]string{"op", "result"},
	)

	c.registered = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "components_registered",
		Help:      "Components currently registered",
	})

	c.registry.MustRegister(
		c.state,
		c.transitions,
		c.hookFailures,
		c.hookDuration,
		c.registered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// OnEvent implements component.Observer.
func (c *Collector) OnEvent(_ context.Context, e component.Event) {
	switch e.Kind {
	case component.EventRegistered:
		c.mu.Lock()
		if _, ok := c.names[e.Component]; !ok {
			c.names[e.Component] = struct{}{}
			c.registered.Inc()
		}
		c.mu.Unlock()
		c.state.WithLabelValues(e.Component).Set(float64(component.Stopped))

	case component.EventDeregistered:
		c.mu.Lock()
		if _, ok := c.names[e.Component]; ok {
			delete(c.names, e.Component)
			c.registered.Dec()
		}
		c.mu.Unlock()
		c.state.DeleteLabelValues(e.Component)

	case component.EventTransition:
		c.state.WithLabelValues(e.Component).Set(float64(e.To))
		c.transitions.WithLabelValues(e.Component, string(e.Op), e.To.String()).Inc()
		if e.Duration > 0 {
			c.hookDuration.WithLabelValues(string(e.Op), "ok").Observe(e.Duration.Seconds())
		}

	case component.EventHookFailed:
		c.hookFailures.WithLabelValues(e.Component, string(e.Op)).Inc()
		c.hookDuration.WithLabelValues(string(e.Op), "error").Observe(e.Duration.Seconds())
	}
}
