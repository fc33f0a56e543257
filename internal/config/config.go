// Package config provides configuration loading and management for the sync engine process.
//
// This is the process-level configuration (database location, synchronized tables,
// transport and retry settings). The remote endpoint, tenant and credentials live in
// the persisted sync configuration row managed through the sync.configure command.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/possync/possync/internal/status"
	"github.com/possync/possync/internal/telemetry"
)

const (
	// EnvPrefix is the prefix for environment variable overrides (POSSYNC_*)
	EnvPrefix = "POSSYNC"

	defaultDatabasePath     = "./data/pos.db"
	defaultTransportTimeout = 5 * time.Second
	defaultMaxAttempts      = 3
	defaultInitialInterval  = 500 * time.Millisecond
	defaultMaxInterval      = 10 * time.Second
	defaultBatchSize        = 200
	defaultPrimaryKey       = "id"
	defaultCursorColumn     = "updated_at"
	defaultServerAddress    = "127.0.0.1:8765"
)

// identifierPattern restricts table and column names to plain SQL identifiers
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Database  DatabaseConfig    `yaml:"database"`
	Transport TransportConfig   `yaml:"transport"`
	Retry     RetryConfig       `yaml:"retry"`
	Sync      SyncConfig        `yaml:"sync"`
	Tables    []TableConfig     `yaml:"tables"`
	Server    ServerConfig      `yaml:"server"`
	Logging   LoggingConfig     `yaml:"logging"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// DatabaseConfig defines the local embedded store
type DatabaseConfig struct {
	// Path is the SQLite database file shared with the host application
	Path string `yaml:"path"`
}

// TransportConfig defines remote API client settings
type TransportConfig struct {
	// Timeout bounds every remote call (e.g. "5s")
	Timeout string `yaml:"timeout,omitempty"`
}

// RetryConfig defines the retry budget for transport-level failures
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first one
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// InitialInterval is the first backoff delay (e.g. "500ms")
	InitialInterval string `yaml:"initialInterval,omitempty"`

	// MaxInterval caps the backoff delay (e.g. "10s")
	MaxInterval string `yaml:"maxInterval,omitempty"`
}

// SyncConfig defines engine behavior
type SyncConfig struct {
	// BatchSize is the maximum number of changes per push request
	BatchSize int `yaml:"batchSize,omitempty"`

	// ConflictPolicy is one of manual, local-wins or remote-wins
	ConflictPolicy status.Policy `yaml:"conflictPolicy,omitempty"`
}

// TableConfig describes one synchronized local table.
// Tables are synchronized in the order they are listed, so parents must precede children.
type TableConfig struct {
	// Name is the local table name, also used as the remote table key
	Name string `yaml:"name"`

	// PrimaryKey is the record identifier column (default "id")
	PrimaryKey string `yaml:"primaryKey,omitempty"`

	// CursorColumn is the monotonically updated modification column (default "updated_at")
	CursorColumn string `yaml:"cursorColumn,omitempty"`

	// DeletedColumn is an optional soft-delete flag column; truthy rows are pushed as deletes
	DeletedColumn string `yaml:"deletedColumn,omitempty"`
}

// ServerConfig defines the command surface HTTP listener
type ServerConfig struct {
	Address string `yaml:"address,omitempty"`
}

// LoggingConfig defines log output
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level,omitempty"`

	// File enables rotated file output in addition to stderr
	File string `yaml:"file,omitempty"`

	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int `yaml:"maxSizeMB,omitempty"`

	// MaxBackups is the number of rotated files kept
	MaxBackups int `yaml:"maxBackups,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses YAML configuration data, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaultMaxAttempts
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = defaultBatchSize
	}
	if c.Sync.ConflictPolicy == "" {
		c.Sync.ConflictPolicy = status.PolicyManual
	}
	if c.Server.Address == "" {
		c.Server.Address = defaultServerAddress
	}
	for i := range c.Tables {
		if c.Tables[i].PrimaryKey == "" {
			c.Tables[i].PrimaryKey = defaultPrimaryKey
		}
		if c.Tables[i].CursorColumn == "" {
			c.Tables[i].CursorColumn = defaultCursorColumn
		}
	}
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}

	seen := make(map[string]bool)
	for i, table := range c.Tables {
		if err := validateTable(table, i); err != nil {
			return err
		}
		if seen[table.Name] {
			return fmt.Errorf("tables[%d]: duplicate table name '%s'", i, table.Name)
		}
		seen[table.Name] = true
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.maxAttempts must be at least 1")
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("sync.batchSize must be at least 1")
	}
	if !c.Sync.ConflictPolicy.Valid() {
		return fmt.Errorf("sync.conflictPolicy must be one of manual, local-wins, remote-wins, got %s",
			c.Sync.ConflictPolicy)
	}

	for name, value := range map[string]string{
		"transport.timeout":     c.Transport.Timeout,
		"retry.initialInterval": c.Retry.InitialInterval,
		"retry.maxInterval":     c.Retry.MaxInterval,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration (e.g., '5s', '500ms'): %w", name, err)
		}
	}

	if c.Telemetry != nil && c.Telemetry.Enabled {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	return nil
}

func validateTable(table TableConfig, index int) error {
	prefix := fmt.Sprintf("tables[%d]", index)
	if table.Name == "" {
		return fmt.Errorf("%s: name is required", prefix)
	}
	prefix = fmt.Sprintf("tables[%d] (%s)", index, table.Name)

	for field, value := range map[string]string{
		"name":          table.Name,
		"primaryKey":    table.PrimaryKey,
		"cursorColumn":  table.CursorColumn,
		"deletedColumn": table.DeletedColumn,
	} {
		if value == "" && field == "deletedColumn" {
			continue
		}
		if !identifierPattern.MatchString(value) {
			return fmt.Errorf("%s: %s '%s' is not a valid identifier", prefix, field, value)
		}
	}

	if table.PrimaryKey == table.CursorColumn {
		return fmt.Errorf("%s: primaryKey and cursorColumn must differ", prefix)
	}

	return nil
}

// Table returns the configuration of the named table
func (c *Config) Table(name string) (TableConfig, bool) {
	for _, table := range c.Tables {
		if table.Name == name {
			return table, true
		}
	}
	return TableConfig{}, false
}

// TransportTimeout returns the configured transport timeout
func (c *Config) TransportTimeout() time.Duration {
	return durationOrDefault(c.Transport.Timeout, defaultTransportTimeout)
}

// RetryInitialInterval returns the first backoff delay
func (c *Config) RetryInitialInterval() time.Duration {
	return durationOrDefault(c.Retry.InitialInterval, defaultInitialInterval)
}

// RetryMaxInterval returns the backoff delay cap
func (c *Config) RetryMaxInterval() time.Duration {
	return durationOrDefault(c.Retry.MaxInterval, defaultMaxInterval)
}

func durationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}
