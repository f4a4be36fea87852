package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
)

// Recovery returns middleware that turns handler panics into a 500 response
// and logs the stack.
func Recovery(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				log.Error("Panic recovered", map[string]interface{}{
					"error":      fmt.Sprintf("%v", p),
					"stack":      string(debug.Stack()),
					"path":       r.URL.Path,
					"method":     r.Method,
					"request_id": r.Header.Get(RequestIDHeader),
				})
				writeError(w, errors.Internal(fmt.Errorf("panic: %v", p)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// writeError renders err the way the admin API renders every error.
func writeError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(err.HTTPStatus)
	_ = json.NewEncoder(w).Encode(err.ToResponse())
}
