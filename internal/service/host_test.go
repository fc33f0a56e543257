package service_test

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/possync/possync/internal/config"
	"github.com/possync/possync/internal/db"
	"github.com/possync/possync/internal/db/dbtest"
	"github.com/possync/possync/internal/db/queries"
	"github.com/possync/possync/internal/health"
	"github.com/possync/possync/internal/service"
	"github.com/possync/possync/internal/status"
	"github.com/possync/possync/internal/syncerr"
	"github.com/possync/possync/internal/tables"
	"github.com/possync/possync/internal/transport"
	"github.com/possync/possync/internal/transport/mocks"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type hostFixture struct {
	conn     *db.Connection
	client   *mocks.MockClient
	host     *service.Host
	settings []transport.Settings
}

func newHostFixture(t *testing.T, stored *queries.UpsertConfigurationParams) *hostFixture {
	t.Helper()

	ctx := context.Background()
	conn := dbtest.NewConnection(t)
	dbtest.Exec(t, conn,
		`CREATE TABLE producto (id INTEGER PRIMARY KEY, nombre TEXT, price REAL, updated_at TEXT)`,
		`CREATE TABLE cliente (id INTEGER PRIMARY KEY, nombre TEXT, updated_at TEXT)`,
	)
	if stored != nil {
		require.NoError(t, conn.Queries.UpsertConfiguration(ctx, *stored))
	}

	var synced []*tables.Table
	for _, name := range []string{"producto", "cliente"} {
		table, err := tables.Introspect(ctx, conn.DB, config.TableConfig{
			Name: name, PrimaryKey: "id", CursorColumn: "updated_at",
		})
		require.NoError(t, err)
		synced = append(synced, table)
	}

	cfg := &config.Config{
		Retry: config.RetryConfig{MaxAttempts: 1, InitialInterval: "1ms", MaxInterval: "2ms"},
		Sync:  config.SyncConfig{BatchSize: 10, ConflictPolicy: status.PolicyManual},
	}

	f := &hostFixture{
		conn:   conn,
		client: mocks.NewMockClient(gomock.NewController(t)),
	}
	host, err := service.NewHost(ctx, conn.DB, cfg, synced,
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithClientFactory(func(settings transport.Settings) transport.Client {
			f.settings = append(f.settings, settings)
			return f.client
		}),
	)
	require.NoError(t, err)
	f.host = host
	return f
}

func storedConfiguration() *queries.UpsertConfigurationParams {
	return &queries.UpsertConfigurationParams{
		APIURL:       "https://erp.example.com/api",
		EmpresaID:    "emp-1",
		AuthToken:    "secret-token-1234",
		SyncInterval: 300,
		Enabled:      true,
		Now:          fixedNow,
	}
}

func TestSync_NotConfigured(t *testing.T) {
	t.Parallel()

	f := newHostFixture(t, nil)
	assert.Empty(t, f.settings)

	for _, env := range []*service.Envelope{
		f.host.SyncFull(context.Background(), service.SyncRequest{}),
		f.host.SyncPull(context.Background(), service.SyncRequest{Force: true}),
		f.host.SyncPush(context.Background(), service.SyncRequest{}),
	} {
		assert.False(t, env.Success)
		assert.Equal(t, service.CodeConfiguration, env.Code)
		assert.Nil(t, env.Data)
	}

	env := f.host.CheckConnection(context.Background())
	require.True(t, env.Success)
	conn, ok := env.Data.(*transport.ConnectionStatus)
	require.True(t, ok)
	assert.False(t, conn.Connected)
	assert.Equal(t, health.MessageNotConfigured, conn.Message)

	env = f.host.GetConfig(context.Background())
	assert.True(t, env.Success)
	assert.Nil(t, env.Data)
}

func TestSync_DisabledNeedsForce(t *testing.T) {
	t.Parallel()

	stored := storedConfiguration()
	stored.Enabled = false
	f := newHostFixture(t, stored)

	env := f.host.SyncPull(context.Background(), service.SyncRequest{})
	assert.False(t, env.Success)
	assert.Equal(t, service.CodeConfiguration, env.Code)

	f.client.EXPECT().PullChanges(gomock.Any(), gomock.Any(), "").Return(&transport.PullResponse{}, nil).Times(2)
	env = f.host.SyncPull(context.Background(), service.SyncRequest{Force: true})
	require.True(t, env.Success, env.Error)
	assert.Equal(t, &service.SyncSummary{TablesProcessed: 2}, env.Data)
}

func TestSync_PartialFailureIsSuccess(t *testing.T) {
	t.Parallel()

	f := newHostFixture(t, storedConfiguration())
	f.client.EXPECT().PullChanges(gomock.Any(), "producto", "").
		Return(nil, syncerr.NewHTTPError(http.StatusNotFound, "https://erp.example.com/api/sync/producto/changes", "no such table"))
	f.client.EXPECT().PullChanges(gomock.Any(), "cliente", "").Return(&transport.PullResponse{
		Changes: []transport.Change{{
			RecordID:  "1",
			Operation: status.OperationInsert,
			Fields:    map[string]any{"nombre": "Ana"},
			Timestamp: "2024-06-01T11:00:00Z",
		}},
	}, nil)

	env := f.host.SyncPull(context.Background(), service.SyncRequest{})
	require.True(t, env.Success)
	assert.Equal(t, &service.SyncSummary{TablesProcessed: 1, RecordsSynced: 1}, env.Data)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "producto", env.Errors[0].Table)
	assert.Equal(t, "pull", env.Errors[0].Direction)
}

func TestSync_AllTablesUnreachable(t *testing.T) {
	t.Parallel()

	f := newHostFixture(t, storedConfiguration())
	f.client.EXPECT().PullChanges(gomock.Any(), gomock.Any(), "").
		Return(nil, &syncerr.TransportError{Message: "connection refused"}).Times(2)

	env := f.host.SyncPull(context.Background(), service.SyncRequest{})
	assert.False(t, env.Success)
	assert.Equal(t, service.CodeTransport, env.Code)
	assert.Contains(t, env.Error, "connection refused")
	assert.Equal(t, &service.SyncSummary{}, env.Data)
	assert.Len(t, env.Errors, 2)
}

func TestConfigure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		req       service.ConfigureRequest
		wantField string
	}{
		{
			name:      "relative url",
			req:       service.ConfigureRequest{APIURL: "erp.example.com", Enabled: true},
			wantField: "apiUrl",
		},
		{
			name:      "enabled without url",
			req:       service.ConfigureRequest{Enabled: true},
			wantField: "apiUrl",
		},
		{
			name:      "negative interval",
			req:       service.ConfigureRequest{APIURL: "https://erp.example.com", SyncInterval: -1},
			wantField: "syncInterval",
		},
		{
			name:      "auto sync without interval",
			req:       service.ConfigureRequest{APIURL: "https://erp.example.com", AutoSync: true},
			wantField: "syncInterval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newHostFixture(t, nil)
			env := f.host.Configure(context.Background(), tt.req)
			assert.False(t, env.Success)
			assert.Equal(t, service.CodeValidation, env.Code)
			assert.Contains(t, env.Error, tt.wantField)

			_, err := f.conn.Queries.GetConfiguration(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestConfigure_RebuildsTransport(t *testing.T) {
	t.Parallel()

	f := newHostFixture(t, nil)
	ctx := context.Background()

	env := f.host.Configure(ctx, service.ConfigureRequest{
		APIURL:       " https://erp.example.com/api ",
		EmpresaID:    "emp-1",
		AuthToken:    "secret-token-1234",
		AutoSync:     true,
		SyncInterval: 600,
		Enabled:      true,
	})
	require.True(t, env.Success, env.Error)
	view, ok := env.Data.(*service.ConfigView)
	require.True(t, ok)
	assert.Equal(t, "https://erp.example.com/api", view.APIURL)
	assert.Equal(t, "*************1234", view.AuthToken)

	require.Len(t, f.settings, 1)
	assert.Equal(t, "https://erp.example.com/api", f.settings[0].APIURL)
	assert.Equal(t, "secret-token-1234", f.settings[0].AuthToken)
	assert.Equal(t, "emp-1", f.settings[0].EmpresaID)

	// Sending the masked token back keeps the stored one
	env = f.host.Configure(ctx, service.ConfigureRequest{
		APIURL:    "https://erp2.example.com/api",
		EmpresaID: "emp-2",
		AuthToken: view.AuthToken,
		Enabled:   true,
	})
	require.True(t, env.Success, env.Error)
	require.Len(t, f.settings, 2)
	assert.Equal(t, "secret-token-1234", f.settings[1].AuthToken)

	stored, err := f.conn.Queries.GetConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, "emp-2", stored.EmpresaID)
	assert.False(t, stored.AutoSync)

	f.client.EXPECT().CheckConnection(gomock.Any()).Return(&transport.ConnectionStatus{Connected: true, Message: "connected"})
	env = f.host.CheckConnection(ctx)
	require.True(t, env.Success)
	assert.True(t, env.Data.(*transport.ConnectionStatus).Connected)
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	stored := storedConfiguration()
	stored.AutoSync = true
	f := newHostFixture(t, stored)
	ctx := context.Background()

	dbtest.Exec(t, f.conn,
		`INSERT INTO producto (id, nombre, price, updated_at) VALUES (1, 'Cafe', 10, '2024-05-01T00:00:00Z')`,
		`INSERT INTO producto (id, nombre, price, updated_at) VALUES (2, 'Te', 5, '2024-05-02T00:00:00Z')`,
		`INSERT INTO cliente (id, nombre, updated_at) VALUES (1, 'Ana', '2024-05-03T00:00:00Z')`,
	)
	_, err := f.conn.Queries.UpsertUnresolvedConflict(ctx, queries.ConflictParams{
		ID:              "conflict-1",
		TableName:       "producto",
		RecordID:        "1",
		LocalData:       []byte(`{"price":10}`),
		RemoteData:      []byte(`{"price":12}`),
		RemoteOperation: status.OperationUpdate,
		Now:             fixedNow,
	})
	require.NoError(t, err)

	env := f.host.GetStats(ctx)
	require.True(t, env.Success, env.Error)
	stats, ok := env.Data.(*service.Stats)
	require.True(t, ok)
	// producto/1 waits on the conflict and is not pushable
	assert.Equal(t, 2, stats.PendingChanges)
	assert.Equal(t, int64(1), stats.UnresolvedConflicts)
	assert.True(t, stats.AutoSyncEnabled)
	assert.Equal(t, int64(300), stats.SyncInterval)
	assert.Nil(t, stats.LastSync)

	env = f.host.GetConflicts(ctx)
	require.True(t, env.Success)
	conflicts, ok := env.Data.([]queries.SyncConflict)
	require.True(t, ok)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "1", conflicts[0].RecordID)
}

func TestResolveConflict_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		req      service.ResolveRequest
		wantCode string
	}{
		{name: "missing id", req: service.ResolveRequest{Resolution: "local"}, wantCode: service.CodeValidation},
		{name: "unknown resolution", req: service.ResolveRequest{ConflictID: "c-1", Resolution: "merge"}, wantCode: service.CodeValidation},
		{name: "unknown conflict", req: service.ResolveRequest{ConflictID: "c-1", Resolution: "remote"}, wantCode: service.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newHostFixture(t, storedConfiguration())
			env := f.host.ResolveConflict(context.Background(), tt.req)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Code)
		})
	}
}

func TestGetLogAndCleanLog(t *testing.T) {
	t.Parallel()

	f := newHostFixture(t, storedConfiguration())
	ctx := context.Background()

	for i := range 60 {
		completed := fixedNow.Add(-time.Duration(i) * 24 * time.Hour)
		_, err := f.conn.Queries.InsertLogEntry(ctx, queries.InsertLogEntryParams{
			RunID:       fmt.Sprintf("run-%d", i),
			SyncType:    status.SyncTypeFull,
			TableName:   "producto",
			Status:      status.LogStatusSuccess,
			StartedAt:   completed,
			CompletedAt: &completed,
		})
		require.NoError(t, err)
	}

	env := f.host.GetLog(ctx, service.LogRequest{})
	require.True(t, env.Success)
	entries := env.Data.([]queries.SyncLogEntry)
	require.Len(t, entries, service.DefaultLogLimit)
	assert.Equal(t, "run-0", entries[0].RunID)

	env = f.host.GetLog(ctx, service.LogRequest{Limit: 5})
	require.Len(t, env.Data.([]queries.SyncLogEntry), 5)

	negative := -1
	env = f.host.CleanLog(ctx, service.CleanLogRequest{Days: &negative})
	assert.False(t, env.Success)
	assert.Equal(t, service.CodeValidation, env.Code)

	// Entries 31..59 days old are strictly older than the 30 day cutoff
	env = f.host.CleanLog(ctx, service.CleanLogRequest{})
	require.True(t, env.Success, env.Error)
	assert.Equal(t, &service.CleanLogResult{Deleted: 29}, env.Data)

	env = f.host.CleanLog(ctx, service.CleanLogRequest{})
	assert.Equal(t, &service.CleanLogResult{Deleted: 0}, env.Data)
}

func TestCleanLog_HugeRetentionKeepsEverything(t *testing.T) {
	t.Parallel()

	f := newHostFixture(t, storedConfiguration())
	ctx := context.Background()
	for i := range 5 {
		started := fixedNow.Add(-time.Duration(i) * time.Hour)
		_, err := f.conn.Queries.InsertLogEntry(ctx, queries.InsertLogEntryParams{
			RunID:     fmt.Sprintf("run-%d", i),
			SyncType:  status.SyncTypePush,
			TableName: "cliente",
			Status:    status.LogStatusSuccess,
			StartedAt: started,
		})
		require.NoError(t, err)
	}

	for _, days := range []int{service.MaxRetentionDays, service.MaxRetentionDays + 1, 200000, math.MaxInt} {
		t.Run(strconv.Itoa(days), func(t *testing.T) {
			env := f.host.CleanLog(ctx, service.CleanLogRequest{Days: &days})
			require.True(t, env.Success, env.Error)
			assert.Equal(t, &service.CleanLogResult{Deleted: 0}, env.Data)
		})
	}

	env := f.host.GetLog(ctx, service.LogRequest{})
	require.True(t, env.Success)
	assert.Len(t, env.Data.([]queries.SyncLogEntry), 5)
}

func TestCheckReadiness(t *testing.T) {
	t.Parallel()

	f := newHostFixture(t, nil)
	require.NoError(t, f.host.CheckReadiness(context.Background()))

	require.NoError(t, f.conn.DB.Close())
	assert.Error(t, f.host.CheckReadiness(context.Background()))
}
