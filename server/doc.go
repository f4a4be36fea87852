// Package server provides the admin HTTP server: gin behind h2c, wrapped in
// the middleware stack from server/middleware, and run as a lifecycle
// component registered as ComponentName.
//
// # Middleware
//
// Applied around the root mux, outermost first:
//
//   - Recovery: panics become a 500 INTERNAL_ERROR body
//   - RequestID: X-Request-Id generation and propagation
//   - RequestLogger: one log line per request, probes skipped
//   - CORS: cross-origin headers and preflight
//   - Auth: HS256 bearer tokens, when auth_secret is set
//   - RateLimiter: per-client token buckets, when rate_limit is set
//   - BodySizeLimit: request body cap
//
// # Endpoints
//
// server/endpoint mounts the registry management API:
//
//   - GET /health, /livez, /readyz, /version
//   - GET /components, GET /components/:name
//   - POST /components/:name/{start|stop|pause|resume}, DELETE /components/:name
//   - POST /lifecycle/{start|stop|pause|resume|update}
//   - GET /metrics and GET /events when configured
//
// Setting tls.cert_file and tls.key_file serves HTTPS; tls.client_ca_file
// additionally requires client certificates.
//
// Errors are rendered as errors.ErrorResponse with the AppError's status.
package server
