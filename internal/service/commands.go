package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/possync/possync/internal/db/queries"
	"github.com/possync/possync/internal/status"
	pkgsync "github.com/possync/possync/internal/sync"
	"github.com/possync/possync/internal/sync/coordinator"
	"github.com/possync/possync/internal/syncerr"
)

// SyncFull implements Service.SyncFull
func (h *Host) SyncFull(ctx context.Context, req SyncRequest) *Envelope {
	return syncEnvelope(h.currentEngine().SyncFull(ctx, pkgsync.Options{Force: req.Force}))
}

// SyncPull implements Service.SyncPull
func (h *Host) SyncPull(ctx context.Context, req SyncRequest) *Envelope {
	return syncEnvelope(h.currentEngine().SyncPull(ctx, pkgsync.Options{Force: req.Force}))
}

// SyncPush implements Service.SyncPush
func (h *Host) SyncPush(ctx context.Context, req SyncRequest) *Envelope {
	return syncEnvelope(h.currentEngine().SyncPush(ctx, pkgsync.Options{Force: req.Force}))
}

// CheckConnection implements Service.CheckConnection
func (h *Host) CheckConnection(ctx context.Context) *Envelope {
	return OK(h.monitor.Check(ctx))
}

// GetStats implements Service.GetStats
func (h *Host) GetStats(ctx context.Context) *Envelope {
	stored, err := h.loadConfiguration(ctx)
	if err != nil {
		return Fail(err)
	}

	metadata, err := h.queries.ListMetadata(ctx)
	if err != nil {
		return Fail(fmt.Errorf("failed to list sync metadata: %w", err))
	}
	cursors := make(map[string]string, len(metadata))
	for _, m := range metadata {
		cursors[m.TableName] = m.PushCursor
	}

	stats := &Stats{Tables: metadata}
	for _, table := range h.tables {
		pending, err := h.detector.Pending(ctx, h.queries, table, cursors[table.Name])
		if err != nil {
			return Fail(fmt.Errorf("failed to count pending changes of %s: %w", table.Name, err))
		}
		stats.PendingChanges += pending
	}

	if stats.UnresolvedConflicts, err = h.queries.CountUnresolvedConflicts(ctx); err != nil {
		return Fail(fmt.Errorf("failed to count conflicts: %w", err))
	}

	if stored != nil {
		stats.LastSync = stored.LastSyncAt
		stats.AutoSyncEnabled = stored.AutoSync
		stats.SyncInterval = stored.SyncInterval
	}
	return OK(stats)
}

// Configure implements Service.Configure
func (h *Host) Configure(ctx context.Context, req ConfigureRequest) *Envelope {
	if err := validateConfigure(req); err != nil {
		return Fail(err)
	}

	previous, err := h.loadConfiguration(ctx)
	if err != nil {
		return Fail(err)
	}

	token := req.AuthToken
	if previous != nil && (token == "" || token == maskToken(previous.AuthToken)) {
		token = previous.AuthToken
	}

	err = h.queries.UpsertConfiguration(ctx, queries.UpsertConfigurationParams{
		APIURL:       strings.TrimSpace(req.APIURL),
		EmpresaID:    strings.TrimSpace(req.EmpresaID),
		AuthToken:    token,
		AutoSync:     req.AutoSync,
		SyncInterval: req.SyncInterval,
		Enabled:      req.Enabled,
		Now:          h.now(),
	})
	if err != nil {
		return Fail(fmt.Errorf("failed to save sync configuration: %w", err))
	}

	stored, err := h.loadConfiguration(ctx)
	if err != nil {
		return Fail(err)
	}

	h.rebuild(stored)
	if err := h.coordinator.Reschedule(h.currentEngine(), coordinator.ScheduleFrom(*stored)); err != nil {
		return Fail(err)
	}

	slog.Info("Sync configuration updated",
		"api_url", stored.APIURL,
		"empresa_id", stored.EmpresaID,
		"auto_sync", stored.AutoSync,
		"sync_interval", stored.SyncInterval,
		"enabled", stored.Enabled)

	return OK(viewOf(stored))
}

func validateConfigure(req ConfigureRequest) error {
	if apiURL := strings.TrimSpace(req.APIURL); apiURL != "" {
		u, err := url.Parse(apiURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return syncerr.NewValidationError("apiUrl", "must be an absolute http or https URL")
		}
	} else if req.Enabled {
		return syncerr.NewValidationError("apiUrl", "is required when sync is enabled")
	}
	if req.SyncInterval < 0 {
		return syncerr.NewValidationError("syncInterval", "must not be negative")
	}
	if req.AutoSync && req.SyncInterval == 0 {
		return syncerr.NewValidationError("syncInterval", "must be positive when autoSync is enabled")
	}
	return nil
}

// GetConfig implements Service.GetConfig. Without a stored configuration the
// envelope succeeds with no data.
func (h *Host) GetConfig(ctx context.Context) *Envelope {
	stored, err := h.loadConfiguration(ctx)
	if err != nil {
		return Fail(err)
	}
	if stored == nil {
		return OK(nil)
	}
	return OK(viewOf(stored))
}

func viewOf(stored *queries.SyncConfiguration) *ConfigView {
	return &ConfigView{
		APIURL:       stored.APIURL,
		EmpresaID:    stored.EmpresaID,
		AuthToken:    maskToken(stored.AuthToken),
		AutoSync:     stored.AutoSync,
		SyncInterval: stored.SyncInterval,
		Enabled:      stored.Enabled,
		LastSyncAt:   stored.LastSyncAt,
		CreatedAt:    stored.CreatedAt,
		UpdatedAt:    stored.UpdatedAt,
	}
}

// maskToken keeps the last four characters of tokens long enough to not reveal them
func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

// GetLog implements Service.GetLog
func (h *Host) GetLog(ctx context.Context, req LogRequest) *Envelope {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	limit = min(limit, MaxLogLimit)

	entries, err := h.queries.ListLogEntries(ctx, int64(limit))
	if err != nil {
		return Fail(fmt.Errorf("failed to list sync log: %w", err))
	}
	if entries == nil {
		entries = []queries.SyncLogEntry{}
	}
	return OK(entries)
}

// GetConflicts implements Service.GetConflicts
func (h *Host) GetConflicts(ctx context.Context) *Envelope {
	conflicts, err := h.queries.ListUnresolvedConflicts(ctx)
	if err != nil {
		return Fail(fmt.Errorf("failed to list conflicts: %w", err))
	}
	if conflicts == nil {
		conflicts = []queries.SyncConflict{}
	}
	return OK(conflicts)
}

// ResolveConflict implements Service.ResolveConflict
func (h *Host) ResolveConflict(ctx context.Context, req ResolveRequest) *Envelope {
	if req.ConflictID == "" {
		return Fail(syncerr.NewValidationError("conflictId", "is required"))
	}

	resolution := status.Resolution(req.Resolution)
	if err := h.resolver.Resolve(ctx, req.ConflictID, resolution); err != nil {
		slog.Warn("Failed to resolve conflict", "conflict_id", req.ConflictID, "resolution", resolution, "error", err)
		return Fail(err)
	}

	slog.Info("Conflict resolved", "conflict_id", req.ConflictID, "resolution", resolution)
	return OK(nil)
}

// CleanLog implements Service.CleanLog
func (h *Host) CleanLog(ctx context.Context, req CleanLogRequest) *Envelope {
	days := DefaultRetentionDays
	if req.Days != nil {
		days = *req.Days
	}
	if days < 0 {
		return Fail(syncerr.NewValidationError("days", "must not be negative"))
	}

	if days > MaxRetentionDays {
		// No entry can be that old
		return OK(&CleanLogResult{Deleted: 0})
	}

	cutoff := h.now().AddDate(0, 0, -days)
	deleted, err := h.queries.DeleteLogEntriesBefore(ctx, cutoff)
	if err != nil {
		return Fail(fmt.Errorf("failed to clean sync log: %w", err))
	}

	slog.Info("Sync log cleaned", "days", days, "deleted", deleted)
	return OK(&CleanLogResult{Deleted: deleted})
}
