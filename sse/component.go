package sse

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/observability"
)

// Component runs a Hub under the registry. Registry events reach clients
// through Observer.
type Component struct {
	hub  *Hub
	path string

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	_ component.Component         = (*Component)(nil)
	_ component.Describable       = (*Component)(nil)
	_ observability.HealthChecker = (*Component)(nil)
)

// NewComponent creates an SSE component serving on path.
func NewComponent(path string) *Component {
	return &Component{
		hub:  NewHub(),
		path: path,
	}
}

// Hub returns the underlying Hub.
func (c *Component) Hub() *Hub { return c.hub }

// Path returns the route the stream is mounted on.
func (c *Component) Path() string { return c.path }

// Observer returns a registry observer that streams events through the hub.
func (c *Component) Observer() component.Observer { return NewEventStream(c.hub) }

// Start launches the hub loop. Starting a running component is a no-op, so
// resuming after a pause keeps connected clients.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	if !c.hub.begin() {
		return errors.Conflict("event hub is already running outside the component")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.loop(runCtx)
	}()
	return nil
}

// Stop ends the hub loop, disconnecting every client.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	c.cancel = nil
	return nil
}

// Shutdown implements component.Component.
func (c *Component) Shutdown(ctx context.Context) error {
	return c.Stop(ctx)
}

// Handler serves the stream. The optional "component" query parameter is a
// glob over component names.
func (c *Component) Handler() gin.HandlerFunc {
	return func(gc *gin.Context) {
		filter := gc.DefaultQuery("component", "*")
		if _, err := filepath.Match(filter, ""); err != nil {
			appErr := errors.InvalidInput("component", fmt.Sprintf("invalid filter %q: %v", filter, err))
			gc.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		ServeSSE(c.hub, gc.Writer, gc.Request, uuid.NewString(),
			WithFilter(filter),
			WithMetadata("remote_addr", gc.ClientIP()),
		)
	}
}

// CheckHealth implements observability.HealthChecker.
func (c *Component) CheckHealth(_ context.Context) observability.Health {
	status := observability.HealthStatusUp
	if !c.hub.Running() {
		status = observability.HealthStatusDown
	}
	return observability.Health{
		Name:    "events",
		Status:  status,
		Message: fmt.Sprintf("%d clients connected", c.hub.ClientCount()),
	}
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	return component.Description{
		Type:    "sse",
		Details: fmt.Sprintf("Path: %s", c.path),
	}
}
