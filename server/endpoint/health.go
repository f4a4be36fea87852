package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/observability"
)

// ServiceHealth builds the health of every registered component. Started
// components that implement observability.HealthChecker report for
// themselves; the rest are judged by state.
func ServiceHealth(c *gin.Context, reg *component.Registry, service, version string) *observability.ServiceHealth {
	sh := observability.NewServiceHealth(service, version)
	for _, info := range reg.List() {
		h := observability.Health{
			Name:    info.Name,
			Status:  observability.HealthForState(info.State.String()),
			Message: info.State.String(),
		}
		if info.State == component.Started {
			if comp, err := reg.Get(info.Name); err == nil {
				if checker, ok := comp.(observability.HealthChecker); ok {
					reported := checker.CheckHealth(c.Request.Context())
					h.Status, h.Message, h.Details = reported.Status, reported.Message, reported.Details
				}
			}
		}
		sh.AddComponent(h)
	}
	return sh
}

// Health reports overall and per-component health. A down service answers 503.
func Health(reg *component.Registry, service, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := ServiceHealth(c, reg, service, version)
		status := http.StatusOK
		if sh.Status == observability.HealthStatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, sh)
	}
}

// Liveness confirms the process is able to serve HTTP.
func Liveness(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"service":   service,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Readiness answers 503 until every registered component is Started.
// Paused components count as ready.
func Readiness(reg *component.Registry, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var pending []string
		for _, info := range reg.List() {
			if info.State == component.Stopped {
				pending = append(pending, info.Name)
			}
		}
		status, httpStatus := "ready", http.StatusOK
		if len(pending) > 0 {
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(httpStatus, gin.H{
			"status":    status,
			"service":   service,
			"pending":   pending,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
