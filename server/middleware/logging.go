package middleware

import (
	"net/http"
	"time"

	"github.com/kbukum/lifecycle/logger"
)

// SlowRequest marks requests that took at least this long.
const SlowRequest = 500 * time.Millisecond

// RequestLogger returns middleware that logs every request with method,
// path, status code, and duration. Probe paths are silently skipped.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsProbe(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)
			duration := time.Since(start)

			path := r.URL.Path
			if q := r.URL.RawQuery; q != "" {
				path += "?" + q
			}
			fields := map[string]interface{}{
				"method":      r.Method,
				"path":        path,
				"status":      sw.status,
				"size":        sw.size,
				"duration_ms": duration.Milliseconds(),
			}
			if id := r.Header.Get(RequestIDHeader); id != "" {
				fields["request_id"] = id
			}
			if duration >= SlowRequest {
				fields["slow"] = true
			}
			logByStatus(log, fields, sw.status)
		})
	}
}

// logByStatus logs request fields at a level derived from the status code.
func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("Request completed", fields)
	case status >= 400:
		log.Warn("Request completed", fields)
	default:
		log.Debug("Request completed", fields)
	}
}
