// Package service provides the sync command surface consumed by the host application.
//
// Every command returns an Envelope; errors never cross this boundary.
package service

import (
	"context"
	"time"

	"github.com/possync/possync/internal/db/queries"
)

const (
	// DefaultLogLimit is the number of log entries returned when no limit is given
	DefaultLogLimit = 50

	// MaxLogLimit caps the number of log entries returned by one call
	MaxLogLimit = 1000

	// DefaultRetentionDays is the log retention applied when no days are given
	DefaultRetentionDays = 30

	// MaxRetentionDays bounds the cleanLog window to a century
	MaxRetentionDays = 36500
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service

// Service defines one method per sync command
type Service interface {
	// CheckReadiness reports whether the local store is usable
	CheckReadiness(ctx context.Context) error

	// SyncFull pulls then pushes every configured table
	SyncFull(ctx context.Context, req SyncRequest) *Envelope

	// SyncPull applies remote changes locally
	SyncPull(ctx context.Context, req SyncRequest) *Envelope

	// SyncPush uploads local changes
	SyncPush(ctx context.Context, req SyncRequest) *Envelope

	// CheckConnection probes the remote API
	CheckConnection(ctx context.Context) *Envelope

	// GetStats summarizes pending work and the last sync
	GetStats(ctx context.Context) *Envelope

	// Configure persists the remote configuration and rebuilds the engine
	Configure(ctx context.Context, req ConfigureRequest) *Envelope

	// GetConfig returns the persisted configuration with the token masked
	GetConfig(ctx context.Context) *Envelope

	// GetLog returns the newest log entries
	GetLog(ctx context.Context, req LogRequest) *Envelope

	// GetConflicts returns the unresolved conflicts, newest first
	GetConflicts(ctx context.Context) *Envelope

	// ResolveConflict settles one conflict in favor of a side
	ResolveConflict(ctx context.Context, req ResolveRequest) *Envelope

	// CleanLog deletes log entries older than the retention window
	CleanLog(ctx context.Context, req CleanLogRequest) *Envelope
}

// SyncRequest is the input of sync.full, sync.pull and sync.push
type SyncRequest struct {
	// Force runs the operation even when sync is disabled
	Force bool `json:"force,omitempty"`
}

// ConfigureRequest is the input of sync.configure
type ConfigureRequest struct {
	APIURL    string `json:"apiUrl"`
	EmpresaID string `json:"empresaId"`
	// AuthToken keeps the stored token when empty or equal to its masked form
	AuthToken    string `json:"authToken,omitempty"`
	AutoSync     bool   `json:"autoSync"`
	SyncInterval int64  `json:"syncInterval"`
	Enabled      bool   `json:"enabled"`
}

// LogRequest is the input of sync.getLog
type LogRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ResolveRequest is the input of sync.resolveConflict
type ResolveRequest struct {
	ConflictID string `json:"conflictId"`
	Resolution string `json:"resolution"`
}

// CleanLogRequest is the input of sync.cleanLog
type CleanLogRequest struct {
	// Days is the retention window; nil means DefaultRetentionDays
	Days *int `json:"days,omitempty"`
}

// Stats is the payload of sync.getStats
type Stats struct {
	LastSync            *time.Time             `json:"lastSync"`
	PendingChanges      int                    `json:"pendingChanges"`
	UnresolvedConflicts int64                  `json:"unresolvedConflicts"`
	AutoSyncEnabled     bool                   `json:"autoSyncEnabled"`
	SyncInterval        int64                  `json:"syncInterval"`
	Tables              []queries.SyncMetadata `json:"tables"`
}

// ConfigView is the payload of sync.getConfig
type ConfigView struct {
	APIURL       string     `json:"apiUrl"`
	EmpresaID    string     `json:"empresaId"`
	AuthToken    string     `json:"authToken"`
	AutoSync     bool       `json:"autoSync"`
	SyncInterval int64      `json:"syncInterval"`
	Enabled      bool       `json:"enabled"`
	LastSyncAt   *time.Time `json:"lastSyncAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// CleanLogResult is the payload of sync.cleanLog
type CleanLogResult struct {
	Deleted int64 `json:"deleted"`
}
