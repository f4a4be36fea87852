package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/lifecycle/component"
)

// Options names the service and carries the optional handlers Mount wires.
type Options struct {
	Service string
	Version string
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Events serves GET EventsPath when set.
	Events gin.HandlerFunc
	// EventsPath defaults to /events.
	EventsPath string
	// Protected names components the API refuses to stop, pause or
	// deregister, typically the server that serves the API.
	Protected []string
}

// Mount registers the admin API for reg on r.
func Mount(r gin.IRouter, reg *component.Registry, opts Options) {
	r.GET("/health", Health(reg, opts.Service, opts.Version))
	r.GET("/livez", Liveness(opts.Service))
	r.GET("/readyz", Readiness(reg, opts.Service))
	r.GET("/version", Version(opts.Service))

	components := r.Group("/components")
	components.GET("", ListComponents(reg))
	components.GET("/:name", GetComponent(reg))
	components.POST("/:name/:op", ApplyOperation(reg, opts.Protected...))
	components.DELETE("/:name", DeregisterComponent(reg, opts.Protected...))

	r.POST("/lifecycle/:op", Bulk(reg, opts.Protected...))

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.Events != nil {
		path := opts.EventsPath
		if path == "" {
			path = "/events"
		}
		r.GET(path, opts.Events)
	}
}
