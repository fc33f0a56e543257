package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/possync/possync/internal/api"
	"github.com/possync/possync/internal/config"
	"github.com/possync/possync/internal/db"
	"github.com/possync/possync/internal/service"
	"github.com/possync/possync/internal/tables"
	"github.com/possync/possync/internal/telemetry"
)

const (
	// defaultRequestTimeout leaves room for a full sync inside one command
	defaultRequestTimeout = 5 * time.Minute
	defaultReadTimeout    = 10 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// Option configures the application builder
type Option func(*appConfig) error

// appConfig holds what the builder needs
// It supports dependency injection for testing while providing sensible defaults for production
type appConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	connection    *db.Connection
	telemetry     *telemetry.Telemetry
	clientFactory service.ClientFactory

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...Option) (*appConfig, error) {
	cfg := &appConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.Server.Address
	}

	return cfg, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) Option {
	return func(cfg *appConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) Option {
	return func(cfg *appConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *appConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout bounds every HTTP request, commands included
func WithRequestTimeout(timeout time.Duration) Option {
	return func(cfg *appConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("request timeout must be positive")
		}
		cfg.requestTimeout = timeout
		return nil
	}
}

// WithConnection uses an already open database instead of opening config.Database (for testing)
func WithConnection(conn *db.Connection) Option {
	return func(cfg *appConfig) error {
		cfg.connection = conn
		return nil
	}
}

// WithTelemetry sets the telemetry providers. Without it telemetry is a no-op.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(cfg *appConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// WithClientFactory overrides how transport clients are built (for testing)
func WithClientFactory(f service.ClientFactory) Option {
	return func(cfg *appConfig) error {
		cfg.clientFactory = f
		return nil
	}
}

// BuildComponents opens the store and builds the sync service, without any HTTP surface
func BuildComponents(ctx context.Context, opts ...Option) (*Components, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	return buildComponents(ctx, cfg)
}

func buildComponents(ctx context.Context, b *appConfig) (*Components, error) {
	slog.Info("Initializing sync components")

	components := &Components{
		Database:  b.connection,
		Telemetry: b.telemetry,
	}
	if components.Telemetry == nil {
		components.Telemetry = telemetry.NewNoOp()
	}

	if components.Database == nil {
		conn, err := db.NewConnection(ctx, &b.config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		components.Database = conn
		components.ownsDatabase = true
	}

	// Ensure cleanup happens on error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			_ = components.Close(context.Background())
		}
	}()

	synced := make([]*tables.Table, 0, len(b.config.Tables))
	for _, tableCfg := range b.config.Tables {
		table, err := tables.Introspect(ctx, components.Database.DB, tableCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load table %s: %w", tableCfg.Name, err)
		}
		synced = append(synced, table)
	}

	meterProvider := components.Telemetry.MeterProvider()
	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}
	healthMetrics, err := telemetry.NewHealthMetrics(meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create health metrics: %w", err)
	}

	hostOpts := []service.HostOption{
		service.WithSyncMetrics(syncMetrics),
		service.WithHealthMetrics(healthMetrics),
		service.WithTracerProvider(components.Telemetry.TracerProvider()),
	}
	if b.clientFactory != nil {
		hostOpts = append(hostOpts, service.WithClientFactory(b.clientFactory))
	}

	host, err := service.NewHost(ctx, components.Database.DB, b.config, synced, hostOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync service: %w", err)
	}
	components.Service = host
	components.SyncCoordinator = host.Coordinator()

	cleanupNeeded = false
	slog.Info("Sync components initialized successfully", "tables", len(synced))
	return components, nil
}

// NewApp builds the components and the HTTP server in front of them
func NewApp(ctx context.Context, opts ...Option) (*App, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	components, err := buildComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		_ = components.Close(context.Background())
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	return &App{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancel:     cancel,
	}, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *appConfig, components *Components) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Metrics and tracing go first to capture every request
	httpMetrics, err := telemetry.NewHTTPMetrics(components.Telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	b.middlewares = append([]func(http.Handler) http.Handler{
		httpMetrics.Middleware,
		telemetry.TracingMiddleware(components.Telemetry.TracerProvider()),
	}, b.middlewares...)

	serverOpts := []api.ServerOption{api.WithMiddlewares(b.middlewares...)}
	if handler := components.Telemetry.MetricsHandler(); handler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(handler))
	}

	// Create HTTP server
	server := &http.Server{
		Addr:              b.address,
		Handler:           api.NewServer(components.Service, serverOpts...),
		ReadTimeout:       b.readTimeout,
		ReadHeaderTimeout: b.readTimeout,
		WriteTimeout:      b.requestTimeout + 5*time.Second,
		IdleTimeout:       b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
