package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/possync/possync/internal/db/queries"
	pkgsync "github.com/possync/possync/internal/sync"
	"github.com/possync/possync/internal/syncerr"
)

// Schedule decides whether and how often automatic syncs run
type Schedule struct {
	AutoSync bool
	Enabled  bool
	Interval time.Duration
}

// Active reports whether the schedule produces ticks
func (s Schedule) Active() bool {
	return s.AutoSync && s.Enabled && s.Interval > 0
}

// ScheduleFrom derives the schedule of a persisted configuration
func ScheduleFrom(cfg queries.SyncConfiguration) Schedule {
	return Schedule{
		AutoSync: cfg.AutoSync,
		Enabled:  cfg.Enabled,
		Interval: time.Duration(cfg.SyncInterval) * time.Second,
	}
}

// Coordinator manages background synchronization scheduling
type Coordinator interface {
	// Start begins background scheduling
	// Blocks until the context is cancelled or Stop is called
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator, waiting for a running sync
	Stop() error

	// Reschedule swaps the engine and schedule, e.g. after the configuration changed.
	// A nil engine or an inactive schedule removes the job.
	Reschedule(engine pkgsync.Engine, schedule Schedule) error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	cron *cron.Cron

	mu       sync.Mutex
	engine   pkgsync.Engine
	schedule Schedule
	entryID  cron.EntryID
	runCtx   context.Context
	started  bool

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates a new coordinator for engine
func New(engine pkgsync.Engine, schedule Schedule) Coordinator {
	logger := slogLogger{}
	c := &defaultCoordinator{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		runCtx: context.Background(),
		done:   make(chan struct{}),
	}
	if err := c.Reschedule(engine, schedule); err != nil {
		slog.Warn("Invalid sync schedule, automatic sync disabled", "error", err)
	}
	return c
}

// Start begins background scheduling
func (c *defaultCoordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("coordinator already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.started = true
	c.runCtx = runCtx
	c.cancelFunc = cancel
	schedule := c.schedule
	c.mu.Unlock()

	defer func() {
		close(c.done)
		slog.Info("Sync coordinator shut down")
	}()

	slog.Info("Starting sync coordinator",
		"auto_sync", schedule.AutoSync,
		"enabled", schedule.Enabled,
		"interval", schedule.Interval)

	c.cron.Start()
	<-runCtx.Done()

	// Wait for a running sync to observe the cancellation
	<-c.cron.Stop().Done()
	return nil
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping sync coordinator")
		cancel()
		<-c.done
	}
	return nil
}

// Reschedule replaces the scheduled job
func (c *defaultCoordinator) Reschedule(engine pkgsync.Engine, schedule Schedule) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entryID != 0 {
		c.cron.Remove(c.entryID)
		c.entryID = 0
	}
	c.engine = engine
	c.schedule = schedule

	if engine == nil || !schedule.Active() {
		slog.Info("Automatic sync disabled",
			"auto_sync", schedule.AutoSync,
			"enabled", schedule.Enabled)
		return nil
	}

	spec := fmt.Sprintf("@every %s", schedule.Interval)
	id, err := c.cron.AddFunc(spec, c.tick)
	if err != nil {
		return fmt.Errorf("failed to schedule %q: %w", spec, err)
	}
	c.entryID = id
	slog.Info("Automatic sync scheduled", "interval", schedule.Interval)
	return nil
}

// tick runs one scheduled full sync
func (c *defaultCoordinator) tick() {
	c.mu.Lock()
	engine, ctx := c.engine, c.runCtx
	c.mu.Unlock()

	if engine == nil {
		return
	}

	start := time.Now()
	result, err := engine.SyncFull(ctx, pkgsync.Options{})
	switch {
	case errors.Is(err, syncerr.ErrSyncInProgress):
		slog.Info("Sync already running, skipping scheduled run")
	case errors.Is(err, context.Canceled):
		slog.Info("Scheduled sync cancelled")
	case result == nil:
		slog.Error("Scheduled sync failed", "error", err)
	default:
		attrs := []any{
			"tables_processed", result.TablesProcessed,
			"records_synced", result.RecordsSynced,
			"conflicts", result.ConflictsDetected,
			"duration", time.Since(start),
		}
		if err != nil {
			slog.Warn("Scheduled sync finished with errors", append(attrs, "error", err)...)
			return
		}
		slog.Info("Scheduled sync completed", attrs...)
	}
}

// slogLogger adapts slog to cron.Logger
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
