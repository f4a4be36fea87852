package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Resource errors
const (
	// ErrCodeNotFound indicates the requested component or resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates a name is already registered.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	// ErrCodeConflict indicates a conflict with the current state of the resource.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Lifecycle errors
const (
	// ErrCodeHookFailed indicates a user-supplied lifecycle hook failed.
	ErrCodeHookFailed ErrorCode = "HOOK_FAILED"
	// ErrCodeCycleDetected indicates a dependency walk revisited a component on its own path.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Authentication errors
const (
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeRateLimited indicates the caller exceeded its request budget.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeTimeout indicates an operation ran past its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:     true,
	ErrCodeHookFailed:  true,
	ErrCodeRateLimited: true,
	ErrCodeInternal:    false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
