package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/semaphore"

	"github.com/possync/possync/internal/conflict"
	"github.com/possync/possync/internal/db/queries"
	"github.com/possync/possync/internal/detector"
	"github.com/possync/possync/internal/otel"
	"github.com/possync/possync/internal/status"
	"github.com/possync/possync/internal/syncerr"
	"github.com/possync/possync/internal/tables"
	"github.com/possync/possync/internal/telemetry"
	"github.com/possync/possync/internal/transport"
)

const (
	// TracerName is the name used for the sync engine tracer
	TracerName = "github.com/possync/possync/sync"

	// DefaultBatchSize is the number of changes sent per push request when unset
	DefaultBatchSize = 200

	// DefaultMaxAttempts is the number of transport attempts per table call when unset
	DefaultMaxAttempts = 3
)

// Direction is the data flow of one table pass
type Direction string

const (
	// DirectionPull applies remote changes locally
	DirectionPull Direction = "pull"
	// DirectionPush uploads local changes
	DirectionPush Direction = "push"
)

// Options tunes a single sync operation
type Options struct {
	// Force runs the operation even when the configuration is disabled
	Force bool `json:"force,omitempty"`
}

// Result summarizes a sync operation
type Result struct {
	TablesProcessed   int                   `json:"tablesProcessed"`
	RecordsSynced     int                   `json:"recordsSynced"`
	ConflictsDetected int                   `json:"conflictsDetected"`
	RecordsRejected   int                   `json:"recordsRejected,omitempty"`
	Errors            []*syncerr.TableError `json:"errors,omitempty"`
}

// Engine runs synchronization operations
//
//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks github.com/possync/possync/internal/sync Engine
type Engine interface {
	// SyncFull pulls then pushes every configured table
	SyncFull(ctx context.Context, opts Options) (*Result, error)

	// SyncPull applies remote changes to every configured table
	SyncPull(ctx context.Context, opts Options) (*Result, error)

	// SyncPush uploads local changes of every configured table
	SyncPush(ctx context.Context, opts Options) (*Result, error)
}

// Settings are the engine's static tuning knobs
type Settings struct {
	// Tables in processing order
	Tables []*tables.Table

	BatchSize       int
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Option configures the engine
type Option func(*defaultEngine)

// WithSyncMetrics sets the sync metrics for the engine
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(e *defaultEngine) {
		e.metrics = metrics
	}
}

// WithTracerProvider sets the tracer provider for per-table spans
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(e *defaultEngine) {
		if provider != nil {
			e.tracer = provider.Tracer(TracerName)
		}
	}
}

// WithSemaphore shares the in-flight exclusion between engines, so an engine
// rebuilt after a configuration change still rejects runs of its predecessor
func WithSemaphore(sem *semaphore.Weighted) Option {
	return func(e *defaultEngine) {
		if sem != nil {
			e.sem = sem
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *defaultEngine) {
		e.now = now
	}
}

// defaultEngine is the default implementation of Engine
type defaultEngine struct {
	db       *sql.DB
	client   transport.Client
	resolver *conflict.Resolver
	detector *detector.Detector
	settings Settings

	sem     *semaphore.Weighted
	metrics *telemetry.SyncMetrics
	tracer  trace.Tracer
	now     func() time.Time
}

// New creates an Engine over the store behind sqlDB and the remote behind client
func New(
	sqlDB *sql.DB,
	client transport.Client,
	resolver *conflict.Resolver,
	settings Settings,
	opts ...Option,
) Engine {
	if settings.BatchSize <= 0 {
		settings.BatchSize = DefaultBatchSize
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = DefaultMaxAttempts
	}
	e := &defaultEngine{
		db:       sqlDB,
		client:   client,
		resolver: resolver,
		detector: detector.New(),
		settings: settings,
		sem:      semaphore.NewWeighted(1),
		tracer:   noop.NewTracerProvider().Tracer(TracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncFull implements Engine.SyncFull
func (e *defaultEngine) SyncFull(ctx context.Context, opts Options) (*Result, error) {
	return e.run(ctx, status.SyncTypeFull, opts, DirectionPull, DirectionPush)
}

// SyncPull implements Engine.SyncPull
func (e *defaultEngine) SyncPull(ctx context.Context, opts Options) (*Result, error) {
	return e.run(ctx, status.SyncTypePull, opts, DirectionPull)
}

// SyncPush implements Engine.SyncPush
func (e *defaultEngine) SyncPush(ctx context.Context, opts Options) (*Result, error) {
	return e.run(ctx, status.SyncTypePush, opts, DirectionPush)
}

func (e *defaultEngine) run(
	ctx context.Context, syncType status.SyncType, opts Options, directions ...Direction,
) (*Result, error) {
	if !e.sem.TryAcquire(1) {
		return nil, syncerr.ErrSyncInProgress
	}
	defer e.sem.Release(1)

	if err := e.checkConfiguration(ctx, opts); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx, span := otel.StartSpan(ctx, e.tracer, "sync."+string(syncType),
		trace.WithAttributes(
			otel.AttrRunID.String(runID),
			otel.AttrSyncType.String(string(syncType)),
			otel.AttrTableCount.Int(len(e.settings.Tables)),
		))
	defer span.End()

	slog.Info("Sync started", "run_id", runID, "sync_type", syncType, "tables", len(e.settings.Tables))
	start := e.now()

	result := &Result{}
	failedTables := make(map[string]string)
	var passes, failures int
	var errs []error

	for _, dir := range directions {
		for _, table := range e.settings.Tables {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			passes++
			out, err := e.syncTable(ctx, runID, syncType, dir, table, failedTables[table.Name])
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					slog.Warn("Sync cancelled", "run_id", runID, "table", table.Name, "direction", dir)
					span.SetStatus(codes.Error, "cancelled")
					return result, ctxErr
				}
				failures++
				if _, seen := failedTables[table.Name]; !seen {
					failedTables[table.Name] = err.Error()
				}
				errs = append(errs, err)
				result.Errors = append(result.Errors, &syncerr.TableError{
					Table:     table.Name,
					Direction: string(dir),
					Message:   err.Error(),
					Err:       err,
				})
				continue
			}

			result.RecordsSynced += out.synced
			result.ConflictsDetected += out.conflicts
			result.RecordsRejected += out.rejected
		}
	}

	for _, table := range e.settings.Tables {
		if _, failed := failedTables[table.Name]; !failed {
			result.TablesProcessed++
		}
	}

	slog.Info("Sync finished",
		"run_id", runID,
		"sync_type", syncType,
		"tables_processed", result.TablesProcessed,
		"records_synced", result.RecordsSynced,
		"conflicts", result.ConflictsDetected,
		"failures", failures,
		"duration", e.now().Sub(start))

	if failures == 0 {
		if err := queries.New(e.db).TouchLastSync(ctx, e.now()); err != nil {
			return result, fmt.Errorf("failed to record last sync time: %w", err)
		}
		otel.RecordSuccess(span)
		return result, nil
	}

	span.SetStatus(codes.Error, fmt.Sprintf("%d of %d table passes failed", failures, passes))
	if failures == passes {
		if transportErr := allTransport(errs); transportErr != nil {
			return result, transportErr
		}
	}
	return result, &syncerr.PartialFailureError{Failures: result.Errors}
}

// allTransport returns the first TransportError when every error is one
func allTransport(errs []error) *syncerr.TransportError {
	var first *syncerr.TransportError
	for _, err := range errs {
		var transportErr *syncerr.TransportError
		if !errors.As(err, &transportErr) {
			return nil
		}
		if first == nil {
			first = transportErr
		}
	}
	return first
}

// checkConfiguration fails before any network call when the remote is not usable
func (e *defaultEngine) checkConfiguration(ctx context.Context, opts Options) error {
	cfg, err := queries.New(e.db).GetConfiguration(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return &syncerr.ConfigurationError{Reason: "no sync configuration", Err: syncerr.ErrNotConfigured}
	}
	if err != nil {
		return fmt.Errorf("failed to read sync configuration: %w", err)
	}
	switch {
	case !cfg.Enabled && !opts.Force:
		return syncerr.NewConfigurationError("sync is disabled")
	case cfg.APIURL == "":
		return syncerr.NewConfigurationError("api url is not configured")
	case cfg.AuthToken == "":
		return syncerr.NewConfigurationError("auth token is not configured")
	}
	if e.client == nil {
		return syncerr.NewConfigurationError("transport is not initialized")
	}
	return nil
}
