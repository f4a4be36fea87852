package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kbukum/lifecycle/errors"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Rate is the sustained number of requests per second per key.
	Rate float64
	// Burst is the bucket size. Defaults to 1.
	Burst int
	// Idle evicts limiters unused for this long. Defaults to 10 minutes.
	Idle time.Duration
	// KeyFunc extracts the limiter key from a request. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	cfg RateLimitConfig

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter. Call Run to evict idle keys.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Idle <= 0 {
		cfg.Idle = 10 * time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return &RateLimiter{cfg: cfg, limiters: make(map[string]*limiterEntry)}
}

// Allow reports whether a request for key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.cfg.Rate), rl.cfg.Burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = time.Now()
	rl.mu.Unlock()
	return e.limiter.Allow()
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Evict drops limiters idle since before cutoff.
func (rl *RateLimiter) Evict(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, e := range rl.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

// Run evicts idle limiters until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.cfg.Idle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.Evict(now.Add(-rl.cfg.Idle))
		}
	}
}

// Middleware rejects requests over budget with 429. Probes are never limited.
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsProbe(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			key := rl.cfg.KeyFunc(r)
			if !rl.Allow(key) {
				w.Header().Set("Retry-After", "1")
				writeError(w, errors.RateLimited(key))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by remote address without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SubjectOrIP keys authenticated requests by token subject.
func SubjectOrIP(r *http.Request) string {
	if claims, ok := ClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		return "sub:" + claims.Subject
	}
	return ClientIP(r)
}
