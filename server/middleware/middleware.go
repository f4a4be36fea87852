package middleware

import (
	"net/http"
	"strings"
)

// Middleware wraps an http.Handler with additional behavior. The admin server
// applies its stack around the root mux, so it covers gin routes and plain
// handlers alike.
type Middleware func(http.Handler) http.Handler

// Chain composes multiple middleware. The first in the list is the outermost
// (runs first on a request, last on a response).
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] != nil {
				final = middlewares[i](final)
			}
		}
		return final
	}
}

// probePaths are served without auth, rate limiting or request logging.
var probePaths = []string{"/health", "/livez", "/readyz"}

// IsProbe reports whether path is a health probe.
func IsProbe(path string) bool {
	for _, p := range probePaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
