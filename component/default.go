package component

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/kbukum/lifecycle/errors"
)

var (
	defaultMu       sync.RWMutex
	defaultRegistry *Registry
)

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultMu.RLock()
	r := defaultRegistry
	defaultMu.RUnlock()
	if r != nil {
		return r
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRegistry == nil {
		defaultRegistry = NewRegistry()
	}
	return defaultRegistry
}

// SetDefault replaces the process-wide registry and returns the previous one.
// Components registered with the previous registry stay there.
func SetDefault(r *Registry) *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultRegistry
	defaultRegistry = r
	return prev
}

// Register adds c to the process-wide registry.
func Register(name string, c Component, opts ...Option) error {
	return Default().Register(name, c, opts...)
}

// Deregister stops and removes name from the process-wide registry.
func Deregister(ctx context.Context, name string) error {
	return Default().Deregister(ctx, name)
}

// Start starts the named components, or all of them.
func Start(ctx context.Context, names ...string) error {
	return Default().Start(ctx, names...)
}

// Stop stops the named components, or all of them.
func Stop(ctx context.Context, names ...string) error {
	return Default().Stop(ctx, names...)
}

// Pause pauses the named components, or all of them.
func Pause(ctx context.Context, names ...string) error {
	return Default().Pause(ctx, names...)
}

// Resume resumes the named components, or all of them.
func Resume(ctx context.Context, names ...string) error {
	return Default().Resume(ctx, names...)
}

// Update runs the update fan-out on the process-wide registry.
func Update(ctx context.Context) error {
	return Default().Update(ctx)
}

// Shutdown shuts down the process-wide registry.
func Shutdown(ctx context.Context) *ShutdownReport {
	return Default().Shutdown(ctx)
}

// Get returns a component from the process-wide registry.
func Get(name string) (Component, error) {
	return Default().Get(name)
}

// GetAs returns a component from the process-wide registry as T.
func GetAs[T any](name string) (T, error) {
	return Lookup[T](Default(), name)
}

// Lookup returns the component registered under name in r as T. A component
// of another type fails with INVALID_INPUT.
func Lookup[T any](r *Registry, name string) (T, error) {
	var zero T
	c, err := r.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := c.(T)
	if !ok {
		return zero, errors.InvalidInput("name",
			fmt.Sprintf("component %q is %T, not %v", name, c, reflect.TypeFor[T]())).WithDetail("component", name)
	}
	return typed, nil
}
