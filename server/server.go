package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/observability"
	"github.com/kbukum/lifecycle/server/middleware"
)

// ComponentName is the name the admin server is registered under.
const ComponentName = "admin"

// ShutdownTimeout bounds graceful shutdown in Stop.
const ShutdownTimeout = 5 * time.Second

// Server is the admin HTTP server: a gin engine mounted on a ServeMux behind
// h2c and the middleware stack. It is a component; Start binds the listener
// and Stop drains it, so it can be restarted through the registry.
type Server struct {
	engine  *gin.Engine
	mux     *http.ServeMux
	handler http.Handler
	limiter *middleware.RateLimiter
	config  Config
	log     *logger.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	cancel     context.CancelFunc
	done       chan struct{}
}

var (
	_ component.Component         = (*Server)(nil)
	_ component.Describable       = (*Server)(nil)
	_ observability.HealthChecker = (*Server)(nil)
)

// New creates a stopped server. Routes may be added through Engine before
// or after Start.
func New(cfg Config, log *logger.Logger) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	mux := http.NewServeMux()
	mux.Handle("/", engine)

	s := &Server{
		engine: engine,
		mux:    mux,
		config: cfg,
		log:    log.WithComponent(ComponentName),
	}
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			Rate:    cfg.RateLimit,
			Burst:   cfg.RateBurst,
			KeyFunc: middleware.SubjectOrIP,
		})
	}
	s.handler = h2c.NewHandler(s.middleware()(mux), &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	})
	return s
}

func (s *Server) middleware() middleware.Middleware {
	stack := []middleware.Middleware{
		middleware.Recovery(s.log),
		middleware.RequestID(),
		middleware.RequestLogger(s.log),
		middleware.CORS(s.config.CORS),
	}
	if s.config.AuthSecret != "" {
		stack = append(stack, middleware.Auth(middleware.AuthConfig{
			Validator: middleware.HS256([]byte(s.config.AuthSecret)),
		}))
	}
	if s.limiter != nil {
		stack = append(stack, s.limiter.Middleware())
	}
	if s.config.MaxBodySize != "" {
		stack = append(stack, middleware.BodySizeLimit(s.config.MaxBodySize))
	}
	return middleware.Chain(stack...)
}

// Engine returns the gin engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Handle mounts an http.Handler at pattern on the root mux, next to gin.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug("Handler mounted", map[string]interface{}{
		"pattern": pattern,
	})
}

// Handler returns the full handler chain, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the port and begins serving. It returns once the listener is
// bound; serving continues in a goroutine. Starting a running server is a
// no-op, so resuming after a pause keeps the listener.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return nil
	}

	tlsConfig, err := s.config.TLS.Build()
	if err != nil {
		return err
	}
	addr := s.config.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("admin server failed to bind %s: %w", addr, err)
	}

	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.IdleTimeout) * time.Second,
		BaseContext:  func(net.Listener) context.Context { return bg },
		TLSConfig:    tlsConfig,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		serve := srv.Serve
		if tlsConfig != nil {
			serve = func(l net.Listener) error { return srv.ServeTLS(l, "", "") }
		}
		if err := serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Admin server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
	if s.limiter != nil {
		go s.limiter.Run(bg)
	}

	s.httpServer, s.listener, s.cancel, s.done = srv, listener, cancel, done
	s.log.Info("Admin server started", map[string]interface{}{
		"addr": listener.Addr().String(),
		"tls":  tlsConfig != nil,
	})
	return nil
}

// Stop gracefully shuts down the server within ShutdownTimeout. Open event
// streams are ended by canceling their base context. The grace period does
// not inherit cancellation from ctx, which may belong to a request the
// server is serving.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer == nil {
		return nil
	}

	s.log.Info("Shutting down admin server")
	s.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		_ = s.httpServer.Close()
	}
	<-s.done
	s.httpServer, s.listener, s.cancel, s.done = nil, nil, nil, nil
	if err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	s.log.Info("Admin server shut down")
	return nil
}

// Shutdown implements component.Component.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Stop(ctx)
}

// Addr returns the bound address while serving, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr()
}

// Serving reports whether the listener is bound.
func (s *Server) Serving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpServer != nil
}

// CheckHealth implements observability.HealthChecker.
func (s *Server) CheckHealth(_ context.Context) observability.Health {
	if !s.Serving() {
		return observability.Health{Name: ComponentName, Status: observability.HealthStatusDown, Message: "not listening"}
	}
	return observability.Health{Name: ComponentName, Status: observability.HealthStatusUp, Message: "listening on " + s.Addr()}
}

// Describe implements component.Describable.
func (s *Server) Describe() component.Description {
	details := s.Addr()
	if s.config.TLS.Enabled() {
		details += " (tls)"
	}
	if s.config.AuthSecret != "" {
		details += " (auth)"
	}
	return component.Description{Type: "server", Details: details}
}
