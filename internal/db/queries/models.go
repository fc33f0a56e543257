package queries

import (
	"encoding/json"
	"time"

	"github.com/possync/possync/internal/status"
)

// SyncConfiguration is the singleton remote endpoint configuration
type SyncConfiguration struct {
	APIURL       string     `json:"apiUrl"`
	EmpresaID    string     `json:"empresaId"`
	AuthToken    string     `json:"authToken"`
	AutoSync     bool       `json:"autoSync"`
	SyncInterval int64      `json:"syncInterval"`
	LastSyncAt   *time.Time `json:"lastSyncAt,omitempty"`
	Enabled      bool       `json:"enabled"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// SyncMetadata is the bookkeeping row of one synchronized table
type SyncMetadata struct {
	TableName     string            `json:"tableName"`
	LastSyncAt    *time.Time        `json:"lastSyncAt,omitempty"`
	Status        status.TablePhase `json:"status"`
	TotalRecords  int64             `json:"totalRecords"`
	SyncedRecords int64             `json:"syncedRecords"`
	LastError     *string           `json:"lastError,omitempty"`
	PullCursor    string            `json:"pullCursor"`
	PushCursor    string            `json:"pushCursor"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// SyncLogEntry is one append-only audit row. Operation and RecordID are nil
// on the table-level entry of an attempt.
type SyncLogEntry struct {
	ID           int64             `json:"id"`
	RunID        string            `json:"runId"`
	SyncType     status.SyncType   `json:"syncType"`
	TableName    string            `json:"tableName"`
	Operation    *status.Operation `json:"operation,omitempty"`
	RecordID     *string           `json:"recordId,omitempty"`
	Status       status.LogStatus  `json:"status"`
	ErrorMessage *string           `json:"errorMessage,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
}

// SyncConflict pairs the diverging local and remote versions of a record
type SyncConflict struct {
	ID              string             `json:"id"`
	TableName       string             `json:"tableName"`
	RecordID        string             `json:"recordId"`
	LocalData       json.RawMessage    `json:"localData"`
	RemoteData      json.RawMessage    `json:"remoteData"`
	RemoteOperation status.Operation   `json:"remoteOperation"`
	Resolution      *status.Resolution `json:"resolution,omitempty"`
	Resolved        bool               `json:"resolved"`
	CreatedAt       time.Time          `json:"createdAt"`
	ResolvedAt      *time.Time         `json:"resolvedAt,omitempty"`
}

// RecordState is the last version of a record both sides agreed on
type RecordState struct {
	TableName string    `json:"tableName"`
	RecordID  string    `json:"recordId"`
	RowHash   string    `json:"rowHash"`
	Dirty     bool      `json:"dirty"`
	SyncedAt  time.Time `json:"syncedAt"`
}
