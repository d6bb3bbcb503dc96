package smartsheet

import "errors"

// Error taxonomy for remote calls. Callers classify with errors.Is.
var (
	// ErrAuth indicates a bad or expired credential (HTTP 401/403).
	// Never retried; a sync operation treats it as systemic and aborts.
	ErrAuth = errors.New("smartsheet: authentication failed")

	// ErrNotFound indicates an unknown workspace or sheet id (HTTP 404).
	ErrNotFound = errors.New("smartsheet: not found")

	// ErrTransient indicates a retryable condition (network error,
	// timeout, HTTP 429/5xx) that persisted through every retry attempt.
	ErrTransient = errors.New("smartsheet: transient failure, retries exhausted")

	// ErrProtocol indicates the response did not match the expected
	// schema (malformed body or an unexpected status code).
	ErrProtocol = errors.New("smartsheet: unexpected response shape")
)
