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
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/content-replicator/internal/api"
	"github.com/stacklok/content-replicator/internal/api/replicator"
	"github.com/stacklok/content-replicator/internal/config"
	"github.com/stacklok/content-replicator/internal/nodetype"
	"github.com/stacklok/content-replicator/internal/store"
	"github.com/stacklok/content-replicator/internal/store/postgres"
	"github.com/stacklok/content-replicator/internal/telemetry"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// ServerAppOption configures the server app builder
type ServerAppOption func(*serverAppConfig) error

// serverAppConfig supports dependency injection for testing while providing
// sensible defaults for production
type serverAppConfig struct {
	config *config.Config

	store store.Store

	address        string
	apiKey         string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...ServerAppOption) (*serverAppConfig, error) {
	cfg := &serverAppConfig{
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
		idleTimeout:  defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.Server.GetAddress()
	}
	if cfg.requestTimeout == 0 {
		cfg.requestTimeout = cfg.config.Server.GetRequestTimeout()
	}
	return cfg, nil
}

// NewServerApp builds the target API server
func NewServerApp(ctx context.Context, opts ...ServerAppOption) (*ServerApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.apiKey == "" {
		cfg.apiKey, err = cfg.config.Server.GetAPIKey()
		if err != nil {
			return nil, err
		}
	}

	var declarations map[string]config.NodeTypeConfig
	if cfg.config.Server != nil {
		declarations = cfg.config.Server.NodeTypes
	}
	nodeTypes, err := nodetype.NewRegistry(declarations)
	if err != nil {
		return nil, fmt.Errorf("failed to compile node types: %w", err)
	}

	if cfg.store == nil {
		var tracer trace.Tracer
		if cfg.tracerProvider != nil {
			tracer = cfg.tracerProvider.Tracer(postgres.StoreTracerName)
		}
		cfg.store, err = NewStore(ctx, cfg.config, tracer)
		if err != nil {
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
	}

	components := &AppComponents{Store: cfg.store, NodeTypes: nodeTypes}
	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		_ = cfg.store.Close()
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	return &ServerApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) ServerAppOption {
	return func(cfg *serverAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) ServerAppOption {
	return func(cfg *serverAppConfig) error {
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

// WithAPIKey overrides the configured API key
func WithAPIKey(apiKey string) ServerAppOption {
	return func(cfg *serverAppConfig) error {
		cfg.apiKey = apiKey
		return nil
	}
}

// WithStore injects the store, skipping database setup
func WithStore(s store.Store) ServerAppOption {
	return func(cfg *serverAppConfig) error {
		cfg.store = s
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerAppOption {
	return func(cfg *serverAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP and receiver metrics
func WithMeterProvider(mp metric.MeterProvider) ServerAppOption {
	return func(cfg *serverAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for HTTP and store spans
func WithTracerProvider(tp trace.TracerProvider) ServerAppOption {
	return func(cfg *serverAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves the handler at /metrics
func WithMetricsHandler(handler http.Handler) ServerAppOption {
	return func(cfg *serverAppConfig) error {
		cfg.metricsHandler = handler
		return nil
	}
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *serverAppConfig, components *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	if b.tracerProvider != nil {
		b.middlewares = append([]func(http.Handler) http.Handler{telemetry.TracingMiddleware(b.tracerProvider)},
			b.middlewares...)
	}

	routeOptions := []replicator.Option{replicator.WithNodeTypes(components.NodeTypes)}
	if b.config.Server != nil {
		routeOptions = append(routeOptions, replicator.WithAvailablePackages(b.config.Server.AvailablePackages...))
	}

	if b.meterProvider != nil {
		// prepended to capture requests rejected by auth
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			b.middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, b.middlewares...)
			slog.Info("HTTP metrics middleware enabled")
		}

		receiverMetrics, err := telemetry.NewReceiverMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create receiver metrics: %w", err)
		}
		routeOptions = append(routeOptions, replicator.WithMetrics(receiverMetrics))
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithAPIKey(b.apiKey),
		api.WithRouteOptions(routeOptions...),
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}

	server := &http.Server{
		Addr:              b.address,
		Handler:           api.NewServer(components.Store, serverOpts...),
		ReadTimeout:       b.readTimeout,
		ReadHeaderTimeout: b.readTimeout,
		WriteTimeout:      b.writeTimeout,
		IdleTimeout:       b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
