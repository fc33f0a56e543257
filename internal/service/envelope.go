package service

import (
	"errors"

	pkgsync "github.com/possync/possync/internal/sync"
	"github.com/possync/possync/internal/syncerr"
)

// Error codes let the host branch on a failure without parsing messages
const (
	CodeConfiguration   = "configuration"
	CodeTransport       = "transport"
	CodeValidation      = "validation"
	CodeNotFound        = "not_found"
	CodeAlreadyResolved = "already_resolved"
	CodeInProgress      = "in_progress"
	CodePartialFailure  = "partial_failure"
	CodeInternal        = "internal"
)

// Envelope is the uniform result of every command
type Envelope struct {
	Success bool                  `json:"success"`
	Data    any                   `json:"data,omitempty"`
	Error   string                `json:"error,omitempty"`
	Code    string                `json:"code,omitempty"`
	Errors  []*syncerr.TableError `json:"errors,omitempty"`
}

// SyncSummary is the data of a sync command envelope
type SyncSummary struct {
	TablesProcessed   int `json:"tablesProcessed"`
	RecordsSynced     int `json:"recordsSynced"`
	ConflictsDetected int `json:"conflictsDetected"`
	RecordsRejected   int `json:"recordsRejected,omitempty"`
}

// OK wraps a successful payload
func OK(data any) *Envelope {
	return &Envelope{Success: true, Data: data}
}

// Fail wraps an error
func Fail(err error) *Envelope {
	return &Envelope{Error: err.Error(), Code: ErrorCode(err)}
}

// ErrorCode classifies err into one of the Code constants
func ErrorCode(err error) string {
	var (
		partialErr    *syncerr.PartialFailureError
		configErr     *syncerr.ConfigurationError
		transportErr  *syncerr.TransportError
		validationErr *syncerr.ValidationError
	)
	// A partial failure unwraps to its table errors, so it is checked before their types
	switch {
	case errors.As(err, &partialErr):
		return CodePartialFailure
	case errors.Is(err, syncerr.ErrSyncInProgress):
		return CodeInProgress
	case errors.As(err, &configErr):
		return CodeConfiguration
	case errors.As(err, &transportErr):
		return CodeTransport
	case errors.As(err, &validationErr):
		return CodeValidation
	case errors.Is(err, syncerr.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, syncerr.ErrAlreadyResolved):
		return CodeAlreadyResolved
	default:
		return CodeInternal
	}
}

// syncEnvelope maps the outcome of an engine call. A partial failure is still
// a success: the summary carries what went through and Errors what did not.
func syncEnvelope(result *pkgsync.Result, err error) *Envelope {
	var partialErr *syncerr.PartialFailureError
	switch {
	case err == nil:
		return OK(summarize(result))
	case errors.As(err, &partialErr):
		env := OK(summarize(result))
		env.Errors = partialErr.Failures
		return env
	default:
		env := Fail(err)
		if result != nil {
			env.Data = summarize(result)
			env.Errors = result.Errors
		}
		return env
	}
}

func summarize(result *pkgsync.Result) *SyncSummary {
	if result == nil {
		return &SyncSummary{}
	}
	return &SyncSummary{
		TablesProcessed:   result.TablesProcessed,
		RecordsSynced:     result.RecordsSynced,
		ConflictsDetected: result.ConflictsDetected,
		RecordsRejected:   result.RecordsRejected,
	}
}
