// Package syncerr defines the error taxonomy of the sync engine.
//
// Configuration errors abort an operation before any network call. Transport
// errors are retried by the orchestrator when Retryable reports true and are
// otherwise reported per table. Validation errors are never retried. Partial
// failures aggregate per-table errors while still carrying a result.
package syncerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrSyncInProgress is returned when a full, pull or push operation is already running
	ErrSyncInProgress = errors.New("a sync operation is already in progress")

	// ErrNotFound is returned when a conflict, its table or its live record does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyResolved is returned when resolving a conflict that is already resolved
	ErrAlreadyResolved = errors.New("conflict already resolved")

	// ErrNotConfigured is wrapped by ConfigurationError when no configuration row exists
	ErrNotConfigured = errors.New("sync is not configured")
)

// ConfigurationError reports a missing, incomplete or disabled sync configuration
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError with the given reason
func NewConfigurationError(reason string) error {
	return &ConfigurationError{Reason: reason}
}

// TransportError represents a failed exchange with the remote server.
// StatusCode is zero when no HTTP response was received.
type TransportError struct {
	StatusCode int
	Message    string
	URL        string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport error for URL %s: %s", e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient: network failures,
// timeouts, 5xx responses and 429 Too Many Requests.
func (e *TransportError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// NewHTTPError creates a TransportError for a non-2xx response
func NewHTTPError(statusCode int, url, message string) error {
	return &TransportError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// ValidationError reports a malformed payload or an invalid request. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError describes a record whose local and remote versions diverged.
// Conflicts are surfaced as stored conflict records, never dropped.
type ConflictError struct {
	ConflictID string
	Table      string
	RecordID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict %s on %s/%s", e.ConflictID, e.Table, e.RecordID)
}

// TableError is the failure of one table within a multi-table operation
type TableError struct {
	Table     string `json:"table"`
	Direction string `json:"direction"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

func (e *TableError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Direction, e.Table, e.Message)
}

func (e *TableError) Unwrap() error {
	return e.Err
}

// PartialFailureError reports that some tables succeeded while others failed
type PartialFailureError struct {
	Failures []*TableError
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("%d table(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the per-table errors to errors.Is and errors.As
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// IsRetryable reports whether err carries a retryable TransportError
func IsRetryable(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Retryable()
	}
	return false
}
