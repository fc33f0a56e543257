package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/possync/possync/internal/status"
	"github.com/possync/possync/internal/telemetry"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name             string
		yamlContent      string
		skipFileCreation bool
		wantConfig       *Config
		wantErr          bool
	}{
		{
			name: "full_config",
			yamlContent: `database:
  path: /var/lib/pos/pos.db
transport:
  timeout: "10s"
retry:
  maxAttempts: 5
  initialInterval: "1s"
  maxInterval: "30s"
sync:
  batchSize: 50
  conflictPolicy: remote-wins
tables:
  - name: cliente
  - name: producto
    primaryKey: codigo
    cursorColumn: modificado
    deletedColumn: borrado
server:
  address: "0.0.0.0:9000"
logging:
  level: debug
  file: /var/log/possync.log`,
			wantConfig: &Config{
				Database:  DatabaseConfig{Path: "/var/lib/pos/pos.db"},
				Transport: TransportConfig{Timeout: "10s"},
				Retry: RetryConfig{
					MaxAttempts:     5,
					InitialInterval: "1s",
					MaxInterval:     "30s",
				},
				Sync: SyncConfig{BatchSize: 50, ConflictPolicy: status.PolicyRemoteWins},
				Tables: []TableConfig{
					{Name: "cliente", PrimaryKey: "id", CursorColumn: "updated_at"},
					{Name: "producto", PrimaryKey: "codigo", CursorColumn: "modificado", DeletedColumn: "borrado"},
				},
				Server:  ServerConfig{Address: "0.0.0.0:9000"},
				Logging: LoggingConfig{Level: "debug", File: "/var/log/possync.log"},
			},
		},
		{
			name: "minimal_config_gets_defaults",
			yamlContent: `tables:
  - name: producto`,
			wantConfig: &Config{
				Database: DatabaseConfig{Path: defaultDatabasePath},
				Retry:    RetryConfig{MaxAttempts: defaultMaxAttempts},
				Sync:     SyncConfig{BatchSize: defaultBatchSize, ConflictPolicy: status.PolicyManual},
				Tables: []TableConfig{
					{Name: "producto", PrimaryKey: "id", CursorColumn: "updated_at"},
				},
				Server: ServerConfig{Address: defaultServerAddress},
			},
		},
		{
			name:        "invalid_yaml",
			yamlContent: `tables: [invalid yaml`,
			wantErr:     true,
		},
		{
			name:        "no_tables",
			yamlContent: `database: {path: pos.db}`,
			wantErr:     true,
		},
		{
			name:             "file_not_found",
			skipFileCreation: true,
			wantErr:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")

			if tt.skipFileCreation {
				configPath = filepath.Join(tmpDir, "non-existent.yaml")
			} else {
				err := os.WriteFile(configPath, []byte(tt.yamlContent), 0600)
				require.NoError(t, err)
			}

			config, err := LoadConfig(WithConfigPath(configPath))

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, config)
		})
	}
}

func TestLoadConfigRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")

	_, err = LoadConfig(WithConfigPath(""))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			Retry:  RetryConfig{MaxAttempts: 3},
			Sync:   SyncConfig{BatchSize: 10, ConflictPolicy: status.PolicyManual},
			Tables: []TableConfig{{Name: "producto", PrimaryKey: "id", CursorColumn: "updated_at"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(_ *Config) {},
		},
		{
			name: "duplicate_table",
			mutate: func(c *Config) {
				c.Tables = append(c.Tables, c.Tables[0])
			},
			wantErr: "duplicate table name",
		},
		{
			name: "missing_table_name",
			mutate: func(c *Config) {
				c.Tables[0].Name = ""
			},
			wantErr: "tables[0]: name is required",
		},
		{
			name: "unsafe_identifier",
			mutate: func(c *Config) {
				c.Tables[0].Name = "producto; DROP TABLE x"
			},
			wantErr: "not a valid identifier",
		},
		{
			name: "unsafe_deleted_column",
			mutate: func(c *Config) {
				c.Tables[0].DeletedColumn = "a-b"
			},
			wantErr: "deletedColumn",
		},
		{
			name: "cursor_equals_primary_key",
			mutate: func(c *Config) {
				c.Tables[0].CursorColumn = "id"
			},
			wantErr: "must differ",
		},
		{
			name: "zero_attempts",
			mutate: func(c *Config) {
				c.Retry.MaxAttempts = 0
			},
			wantErr: "retry.maxAttempts",
		},
		{
			name: "zero_batch",
			mutate: func(c *Config) {
				c.Sync.BatchSize = 0
			},
			wantErr: "sync.batchSize",
		},
		{
			name: "unknown_policy",
			mutate: func(c *Config) {
				c.Sync.ConflictPolicy = "first-wins"
			},
			wantErr: "sync.conflictPolicy",
		},
		{
			name: "bad_timeout",
			mutate: func(c *Config) {
				c.Transport.Timeout = "soon"
			},
			wantErr: "transport.timeout",
		},
		{
			name: "disabled_telemetry_is_not_validated",
			mutate: func(c *Config) {
				c.Telemetry = &telemetry.Config{
					Metrics: &telemetry.MetricsConfig{Enabled: true, Exporter: "statsd"},
				}
			},
		},
		{
			name: "bad_metrics_exporter",
			mutate: func(c *Config) {
				c.Telemetry = &telemetry.Config{
					Enabled: true,
					Metrics: &telemetry.MetricsConfig{Enabled: true, Exporter: "statsd"},
				}
			},
			wantErr: "telemetry: metrics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateNil(t *testing.T) {
	t.Parallel()

	var cfg *Config
	require.Error(t, cfg.Validate())
}

func TestDurations(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, 5*time.Second, cfg.TransportTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.RetryInitialInterval())
	assert.Equal(t, 10*time.Second, cfg.RetryMaxInterval())

	cfg.Transport.Timeout = "2s"
	cfg.Retry.InitialInterval = "10ms"
	cfg.Retry.MaxInterval = "1m"
	assert.Equal(t, 2*time.Second, cfg.TransportTimeout())
	assert.Equal(t, 10*time.Millisecond, cfg.RetryInitialInterval())
	assert.Equal(t, time.Minute, cfg.RetryMaxInterval())
}

func TestTableLookup(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte("tables:\n  - name: cliente\n  - name: producto\n"))
	require.NoError(t, err)

	table, ok := cfg.Table("producto")
	require.True(t, ok)
	assert.Equal(t, "id", table.PrimaryKey)

	_, ok = cfg.Table("venta")
	assert.False(t, ok)
}
