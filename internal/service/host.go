package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/possync/possync/internal/config"
	"github.com/possync/possync/internal/conflict"
	"github.com/possync/possync/internal/db/queries"
	"github.com/possync/possync/internal/detector"
	"github.com/possync/possync/internal/health"
	pkgsync "github.com/possync/possync/internal/sync"
	"github.com/possync/possync/internal/sync/coordinator"
	"github.com/possync/possync/internal/tables"
	"github.com/possync/possync/internal/telemetry"
	"github.com/possync/possync/internal/transport"
)

// ClientFactory builds the transport client of a stored configuration
type ClientFactory func(settings transport.Settings) transport.Client

// HostOption configures a Host
type HostOption func(*Host)

// WithClientFactory overrides how transport clients are built
func WithClientFactory(factory ClientFactory) HostOption {
	return func(h *Host) {
		h.newClient = factory
	}
}

// WithSyncMetrics forwards sync metrics to every engine the host builds
func WithSyncMetrics(metrics *telemetry.SyncMetrics) HostOption {
	return func(h *Host) {
		h.syncMetrics = metrics
	}
}

// WithHealthMetrics records connection probes
func WithHealthMetrics(metrics *telemetry.HealthMetrics) HostOption {
	return func(h *Host) {
		h.healthMetrics = metrics
	}
}

// WithTracerProvider forwards a tracer provider to every engine the host builds
func WithTracerProvider(provider trace.TracerProvider) HostOption {
	return func(h *Host) {
		h.tracerProvider = provider
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) HostOption {
	return func(h *Host) {
		h.now = now
	}
}

// Host implements Service. It owns the engine lifecycle: the engine and its
// transport client are built once from the stored configuration and rebuilt
// only by Configure.
type Host struct {
	db          *sql.DB
	queries     *queries.Queries
	cfg         *config.Config
	tables      []*tables.Table
	detector    *detector.Detector
	resolver    *conflict.Resolver
	monitor     *health.Monitor
	coordinator coordinator.Coordinator

	// sem is shared by every engine generation
	sem *semaphore.Weighted

	newClient      ClientFactory
	syncMetrics    *telemetry.SyncMetrics
	healthMetrics  *telemetry.HealthMetrics
	tracerProvider trace.TracerProvider
	now            func() time.Time

	mu     sync.RWMutex
	client transport.Client
	engine pkgsync.Engine
}

var _ Service = (*Host)(nil)

// NewHost creates the command surface over the store behind sqlDB
func NewHost(
	ctx context.Context,
	sqlDB *sql.DB,
	cfg *config.Config,
	synced []*tables.Table,
	opts ...HostOption,
) (*Host, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	h := &Host{
		db:       sqlDB,
		queries:  queries.New(sqlDB),
		cfg:      cfg,
		tables:   synced,
		detector: detector.New(),
		sem:      semaphore.NewWeighted(1),
		newClient: func(settings transport.Settings) transport.Client {
			return transport.NewHTTPClient(settings)
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.resolver = conflict.NewResolver(sqlDB, cfg.Sync.ConflictPolicy, synced, conflict.WithClock(h.now))
	h.monitor = health.NewMonitor(h.queries, h.currentClient, health.WithHealthMetrics(h.healthMetrics))

	stored, err := h.loadConfiguration(ctx)
	if err != nil {
		return nil, err
	}
	h.rebuild(stored)

	schedule := coordinator.Schedule{}
	if stored != nil {
		schedule = coordinator.ScheduleFrom(*stored)
	}
	h.coordinator = coordinator.New(h.currentEngine(), schedule)

	return h, nil
}

// Coordinator returns the scheduler driving automatic syncs
func (h *Host) Coordinator() coordinator.Coordinator {
	return h.coordinator
}

// loadConfiguration returns the stored configuration, or nil when none exists
func (h *Host) loadConfiguration(ctx context.Context) (*queries.SyncConfiguration, error) {
	stored, err := h.queries.GetConfiguration(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync configuration: %w", err)
	}
	return &stored, nil
}

// rebuild replaces the transport client and engine for stored
func (h *Host) rebuild(stored *queries.SyncConfiguration) {
	var client transport.Client
	if stored != nil {
		client = h.newClient(transport.Settings{
			APIURL:    stored.APIURL,
			EmpresaID: stored.EmpresaID,
			AuthToken: stored.AuthToken,
			Timeout:   h.cfg.TransportTimeout(),
		})
	}

	engine := pkgsync.New(h.db, client, h.resolver, pkgsync.Settings{
		Tables:          h.tables,
		BatchSize:       h.cfg.Sync.BatchSize,
		MaxAttempts:     h.cfg.Retry.MaxAttempts,
		InitialInterval: h.cfg.RetryInitialInterval(),
		MaxInterval:     h.cfg.RetryMaxInterval(),
	},
		pkgsync.WithSemaphore(h.sem),
		pkgsync.WithSyncMetrics(h.syncMetrics),
		pkgsync.WithTracerProvider(h.tracerProvider),
		pkgsync.WithClock(h.now),
	)

	h.mu.Lock()
	h.client = client
	h.engine = engine
	h.mu.Unlock()

	slog.Debug("Sync engine built", "configured", client != nil, "tables", len(h.tables))
}

func (h *Host) currentClient() transport.Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.client
}

func (h *Host) currentEngine() pkgsync.Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine
}

// CheckReadiness implements Service.CheckReadiness
func (h *Host) CheckReadiness(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	return nil
}
