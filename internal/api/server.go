// Package api provides the REST API server receiving replicated content.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/content-replicator/internal/api/common"
	"github.com/stacklok/content-replicator/internal/api/replicator"
	"github.com/stacklok/content-replicator/internal/auth"
	"github.com/stacklok/content-replicator/internal/httpclient"
	"github.com/stacklok/content-replicator/internal/store"
	"github.com/stacklok/content-replicator/internal/versions"
)

// PublicPaths are served without the API key
var PublicPaths = []string{"/health", "/version", "/metrics"}

// ServerOption configures the API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	apiKey         string
	middlewares    []func(http.Handler) http.Handler
	routeOptions   []replicator.Option
	metricsHandler http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithAPIKey sets the shared secret replicators must present
func WithAPIKey(apiKey string) ServerOption {
	return func(cfg *serverConfig) {
		cfg.apiKey = apiKey
	}
}

// WithRouteOptions configures the replicator handlers
func WithRouteOptions(opts ...replicator.Option) ServerOption {
	return func(cfg *serverConfig) {
		cfg.routeOptions = append(cfg.routeOptions, opts...)
	}
}

// WithMetricsHandler serves the handler at /metrics
func WithMetricsHandler(handler http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = handler
	}
}

// NewServer creates and configures the HTTP router over the given store
func NewServer(s store.Store, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}
	r.Use(auth.NewAPIKeyMiddleware(cfg.apiKey, PublicPaths...))

	r.Get("/health", healthHandler(s))
	r.Get("/version", versionHandler)
	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}

	r.Mount("/"+httpclient.APIPrefix, replicator.Router(s, cfg.routeOptions...))

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// VersionResponse is the body of GET /version
type VersionResponse struct {
	versions.VersionInfo
	APIVersion string `json:"apiVersion"`
}

func healthHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Ping(r.Context()); err != nil {
			slog.Warn("Health check failed", "error", err)
			common.WriteJSONResponse(w, map[string]string{"status": "unhealthy"}, http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, map[string]string{"status": "healthy"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, VersionResponse{
		VersionInfo: versions.GetVersionInfo(),
		APIVersion:  versions.APIVersion,
	}, http.StatusOK)
}
