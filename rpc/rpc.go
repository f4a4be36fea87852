package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/observability"
	"github.com/kbukum/lifecycle/validation"
)

// ComponentName is the name the RPC server is conventionally registered under.
const ComponentName = "RPCServer"

// Method is an exported call. params is the raw "params" value of the request
// and may be empty.
type Method func(ctx context.Context, params json.RawMessage) (any, error)

// Exportable is implemented by objects that expose methods over RPC.
type Exportable interface {
	// Exports maps method names to implementations. The server reads it once
	// per RegisterObject call.
	Exports() map[string]Method
}

// ExportFuncs adapts a map to Exportable.
type ExportFuncs map[string]Method

func (f ExportFuncs) Exports() map[string]Method { return f }

// Server dispatches "namespace.method" calls to registered objects. It is a
// component: calls are refused while it is not Started.
type Server struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]Method

	running atomic.Bool
	metrics *observability.LifecycleMetrics
	log     *logger.Logger
}

var (
	_ component.Component         = (*Server)(nil)
	_ component.Describable       = (*Server)(nil)
	_ observability.HealthChecker = (*Server)(nil)
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l.WithComponent("rpc") }
}

// WithMetrics records every call on m.
func WithMetrics(m *observability.LifecycleMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a stopped server with no methods.
func NewServer(opts ...Option) *Server {
	s := &Server{
		namespaces: make(map[string]map[string]Method),
		log:        logger.GetGlobalLogger().WithComponent("rpc"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterObject exposes obj's exports under namespace. Registering a
// namespace again replaces every method it had.
func (s *Server) RegisterObject(obj Exportable, namespace string) error {
	if namespace == "" {
		return errors.MissingField("namespace")
	}
	if strings.Contains(namespace, ".") || !validation.IsComponentName(namespace) {
		return errors.InvalidInput("namespace", fmt.Sprintf("%q is not a valid namespace", namespace))
	}
	if obj == nil {
		return errors.MissingField("object")
	}

	exports := obj.Exports()
	methods := make(map[string]Method, len(exports))
	for name, fn := range exports {
		if name == "" || strings.Contains(name, ".") {
			return errors.InvalidInput("method", fmt.Sprintf("%q is not a valid method name", name)).
				WithDetail("namespace", namespace)
		}
		if fn == nil {
			return errors.MissingField(namespace + "." + name)
		}
		methods[name] = fn
	}

	s.mu.Lock()
	_, replaced := s.namespaces[namespace]
	s.namespaces[namespace] = methods
	s.mu.Unlock()

	fields := map[string]interface{}{
		"namespace": namespace,
		"methods":   len(methods),
	}
	if replaced {
		s.log.Warn("RPC namespace replaced", fields)
	} else {
		s.log.Debug("RPC namespace registered", fields)
	}
	return nil
}

// DeregisterObject removes namespace. It reports whether it was registered.
func (s *Server) DeregisterObject(namespace string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.namespaces[namespace]; !ok {
		return false
	}
	delete(s.namespaces, namespace)
	return true
}

// Methods returns every fully qualified method name, sorted.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for ns, methods := range s.namespaces {
		for name := range methods {
			names = append(names, ns+"."+name)
		}
	}
	slices.Sort(names)
	return names
}

func (s *Server) lookup(method string) (Method, bool) {
	ns, name, ok := strings.Cut(method, ".")
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.namespaces[ns][name]
	return fn, ok
}

// Call invokes method ("namespace.name") with params. Errors are always
// *errors.AppError: unknown methods are NOT_FOUND, a stopped server is a
// CONFLICT, and errors or panics that are not AppErrors become INTERNAL_ERROR.
func (s *Server) Call(ctx context.Context, method string, params json.RawMessage) (result any, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanRPCCall)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrRPCMethod, method)

	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			if appErr, ok := errors.AsAppError(err); ok {
				status = string(appErr.Code)
			}
			observability.SetSpanError(ctx, err)
		}
		if s.metrics != nil {
			s.metrics.RecordRPCCall(ctx, method, status)
		}
		s.log.Debug("RPC call", map[string]interface{}{
			"method":      method,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}()

	if !s.running.Load() {
		return nil, errors.Conflict("rpc server is not running").WithDetail("method", method)
	}
	fn, ok := s.lookup(method)
	if !ok {
		return nil, errors.NotFound("method", method)
	}
	return invoke(ctx, fn, params)
}

func invoke(ctx context.Context, fn Method, params json.RawMessage) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Internal(fmt.Errorf("panic: %v", p))
		}
	}()
	result, err = fn(ctx, params)
	if err != nil {
		return nil, errors.From(err)
	}
	return result, nil
}

// Running reports whether calls are accepted.
func (s *Server) Running() bool { return s.running.Load() }

// Start begins accepting calls.
func (s *Server) Start(_ context.Context) error {
	s.running.Store(true)
	return nil
}

// Stop refuses further calls. Registered methods are kept.
func (s *Server) Stop(_ context.Context) error {
	s.running.Store(false)
	return nil
}

// Shutdown implements component.Component.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Stop(ctx)
}

// CheckHealth implements observability.HealthChecker.
func (s *Server) CheckHealth(_ context.Context) observability.Health {
	status := observability.HealthStatusUp
	if !s.Running() {
		status = observability.HealthStatusDown
	}
	return observability.Health{
		Name:    "rpc",
		Status:  status,
		Message: fmt.Sprintf("%d methods", len(s.Methods())),
	}
}

// Describe implements component.Describable.
func (s *Server) Describe() component.Description {
	s.mu.RLock()
	namespaces := len(s.namespaces)
	s.mu.RUnlock()
	return component.Description{
		Type:    "rpc",
		Details: fmt.Sprintf("%d namespaces, %d methods", namespaces, len(s.Methods())),
	}
}
