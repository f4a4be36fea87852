package component

import (
	"context"
	"time"
)

// DefaultInterval is the update interval of components registered without one.
const DefaultInterval = time.Second

// Component is a lifecycle-managed unit. The registry calls its hooks; callers
// never call them directly.
type Component interface {
	// Start runs on Stopped -> Started and on Paused -> Started.
	Start(ctx context.Context) error
	// Stop runs on Started -> Stopped and Paused -> Stopped.
	Stop(ctx context.Context) error
	// Shutdown runs once during registry shutdown, after every component
	// has been stopped.
	Shutdown(ctx context.Context) error
}

// Updater is implemented by components with periodic work. Update runs on the
// component's timer every interval while Started, and on each registry Update
// fan-out.
type Updater interface {
	Update(ctx context.Context) error
}

// Base implements Component with no-op hooks. Embed it to override only the
// hooks a component needs.
type Base struct{}

func (Base) Start(context.Context) error { return nil }
func (Base) Stop(context.Context) error { return nil }
func (Base) Shutdown(context.Context) error { return nil }

// Description holds summary information for the startup table and the admin API.
type Description struct {
	// Type categorizes the component: "server", "rpc", "heartbeat", etc.
	Type string `json:"type,omitempty"`
	// Details is a one-liner such as "listening on :8080".
	Details string `json:"details,omitempty"`
}

// Describable is optionally implemented by components to self-report what
// they are.
type Describable interface {
	Describe() Description
}

// Option configures a component at registration.
type Option func(*registration)

type registration struct {
	interval time.Duration
	deps     []string
}

// WithInterval sets the update interval. Non-positive values mean DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(r *registration) { r.interval = d }
}

// DependsOn declares components that must be Started before this one.
// Names are not checked until start.
func DependsOn(names ...string) Option {
	return func(r *registration) { r.deps = append(r.deps, names...) }
}
