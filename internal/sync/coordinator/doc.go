// Package coordinator schedules automatic synchronization.
//
// It sits on top of internal/sync.Engine and handles:
//
//   - Periodic full syncs every sync_interval seconds using robfig/cron
//   - Rescheduling when the sync configuration changes
//   - Graceful shutdown that waits for a running sync to return
//
// A tick that finds a sync already in flight, for example one started by a
// caller, logs and skips instead of queueing.
//
// # Usage
//
//	coord := coordinator.New(engine, coordinator.ScheduleFrom(cfg))
//	go func() {
//		if err := coord.Start(ctx); err != nil {
//			slog.Error("Coordinator failed", "error", err)
//		}
//	}()
//	defer coord.Stop()
package coordinator
