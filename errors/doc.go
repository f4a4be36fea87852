// Package errors provides the structured error type shared by the lifecycle
// packages. Every error carries a machine-readable code, an HTTP status used by
// the admin API, optional details and an underlying cause.
//
// The codes a caller usually branches on are NOT_FOUND (unknown component),
// HOOK_FAILED (a user lifecycle hook returned an error or panicked) and
// CYCLE_DETECTED (a dependency walk revisited a component on its own path):
//
//	if errors.HasCode(err, errors.ErrCodeNotFound) {
//	    // ...
//	}
package errors
