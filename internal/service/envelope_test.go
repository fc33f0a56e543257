package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgsync "github.com/possync/possync/internal/sync"
	"github.com/possync/possync/internal/syncerr"
)

func TestErrorCode(t *testing.T) {
	t.Parallel()

	transportErr := &syncerr.TransportError{StatusCode: 503, Message: "unavailable"}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "in progress", err: syncerr.ErrSyncInProgress, want: CodeInProgress},
		{name: "configuration", err: syncerr.NewConfigurationError("sync is disabled"), want: CodeConfiguration},
		{name: "transport", err: transportErr, want: CodeTransport},
		{name: "wrapped transport", err: fmt.Errorf("pull producto: %w", transportErr), want: CodeTransport},
		{name: "validation", err: syncerr.NewValidationError("days", "must not be negative"), want: CodeValidation},
		{name: "not found", err: fmt.Errorf("conflict x: %w", syncerr.ErrNotFound), want: CodeNotFound},
		{name: "already resolved", err: syncerr.ErrAlreadyResolved, want: CodeAlreadyResolved},
		{
			name: "partial failure over transport",
			err: &syncerr.PartialFailureError{Failures: []*syncerr.TableError{
				{Table: "producto", Direction: "pull", Message: transportErr.Error(), Err: transportErr},
			}},
			want: CodePartialFailure,
		},
		{name: "anything else", err: errors.New("disk full"), want: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestSyncEnvelope(t *testing.T) {
	t.Parallel()

	failure := &syncerr.TableError{Table: "producto", Direction: "push", Message: "HTTP 400"}
	result := &pkgsync.Result{TablesProcessed: 1, RecordsSynced: 4, Errors: []*syncerr.TableError{failure}}

	env := syncEnvelope(result, &syncerr.PartialFailureError{Failures: result.Errors})
	assert.True(t, env.Success)
	assert.Empty(t, env.Error)
	assert.Equal(t, &SyncSummary{TablesProcessed: 1, RecordsSynced: 4}, env.Data)
	assert.Equal(t, []*syncerr.TableError{failure}, env.Errors)

	env = syncEnvelope(nil, syncerr.ErrSyncInProgress)
	assert.False(t, env.Success)
	assert.Equal(t, CodeInProgress, env.Code)
	assert.Nil(t, env.Data)

	env = syncEnvelope(&pkgsync.Result{TablesProcessed: 2}, nil)
	assert.True(t, env.Success)
	assert.Equal(t, &SyncSummary{TablesProcessed: 2}, env.Data)
	assert.Empty(t, env.Errors)
}
