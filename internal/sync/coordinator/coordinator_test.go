package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/possync/possync/internal/db/queries"
	pkgsync "github.com/possync/possync/internal/sync"
	"github.com/possync/possync/internal/sync/mocks"
	"github.com/possync/possync/internal/syncerr"
)

func TestScheduleFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        queries.SyncConfiguration
		wantActive bool
	}{
		{name: "auto sync enabled", cfg: queries.SyncConfiguration{AutoSync: true, Enabled: true, SyncInterval: 300}, wantActive: true},
		{name: "auto sync off", cfg: queries.SyncConfiguration{AutoSync: false, Enabled: true, SyncInterval: 300}},
		{name: "sync disabled", cfg: queries.SyncConfiguration{AutoSync: true, Enabled: false, SyncInterval: 300}},
		{name: "zero interval", cfg: queries.SyncConfiguration{AutoSync: true, Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			schedule := ScheduleFrom(tt.cfg)
			assert.Equal(t, time.Duration(tt.cfg.SyncInterval)*time.Second, schedule.Interval)
			assert.Equal(t, tt.wantActive, schedule.Active())
		})
	}
}

func TestReschedule(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	active := Schedule{AutoSync: true, Enabled: true, Interval: 5 * time.Minute}

	c := New(engine, active).(*defaultCoordinator)
	require.Len(t, c.cron.Entries(), 1)

	require.NoError(t, c.Reschedule(engine, Schedule{AutoSync: false, Enabled: true, Interval: time.Minute}))
	assert.Empty(t, c.cron.Entries())

	require.NoError(t, c.Reschedule(engine, active))
	require.Len(t, c.cron.Entries(), 1)

	require.NoError(t, c.Reschedule(nil, active))
	assert.Empty(t, c.cron.Entries())
}

func TestTick(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result *pkgsync.Result
		err    error
	}{
		{name: "success", result: &pkgsync.Result{TablesProcessed: 2, RecordsSynced: 5}},
		{name: "sync already in progress", err: syncerr.ErrSyncInProgress},
		{name: "partial failure", result: &pkgsync.Result{TablesProcessed: 1},
			err: &syncerr.PartialFailureError{Failures: []*syncerr.TableError{{Table: "producto", Direction: "pull"}}}},
		{name: "configuration error", err: syncerr.NewConfigurationError("sync is disabled")},
		{name: "nil result without error", result: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			engine := mocks.NewMockEngine(ctrl)
			engine.EXPECT().SyncFull(gomock.Any(), pkgsync.Options{}).Return(tt.result, tt.err)

			c := New(engine, Schedule{}).(*defaultCoordinator)
			c.tick()
		})
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	fired := make(chan struct{}, 10)
	engine.EXPECT().SyncFull(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pkgsync.Options) (*pkgsync.Result, error) {
			fired <- struct{}{}
			return &pkgsync.Result{}, nil
		}).MinTimes(1)

	c := New(engine, Schedule{AutoSync: true, Enabled: true, Interval: time.Second})

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Start(context.Background())
	}()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled sync did not run")
	}

	require.NoError(t, c.Stop())
	require.NoError(t, <-errCh)
}

func TestStartTwice(t *testing.T) {
	t.Parallel()

	c := New(nil, Schedule{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		dc := c.(*defaultCoordinator)
		dc.mu.Lock()
		defer dc.mu.Unlock()
		return dc.started
	}, time.Second, 10*time.Millisecond)

	err := c.Start(ctx)
	assert.True(t, err != nil && !errors.Is(err, context.Canceled))

	cancel()
	require.NoError(t, <-errCh)
	require.NoError(t, c.Stop())
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()

	c := New(nil, Schedule{})
	assert.NoError(t, c.Stop())
}
