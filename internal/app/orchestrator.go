package app

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/content-replicator/internal/config"
	"github.com/stacklok/content-replicator/internal/httpclient"
	"github.com/stacklok/content-replicator/internal/replication"
	"github.com/stacklok/content-replicator/internal/status"
	"github.com/stacklok/content-replicator/internal/telemetry"
)

// ReplicationTracerName is the name of the tracer creating target run spans
const ReplicationTracerName = "github.com/stacklok/content-replicator/replication"

// OrchestratorOption configures the orchestrator builder
type OrchestratorOption func(*orchestratorConfig)

type orchestratorConfig struct {
	client         httpclient.Client
	tracker        status.Tracker
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// WithHTTPClient replaces the transport used to reach targets
func WithHTTPClient(client httpclient.Client) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		cfg.client = client
	}
}

// WithStatusTracker replaces the tracker persisting per-target status
func WithStatusTracker(tracker status.Tracker) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		cfg.tracker = tracker
	}
}

// WithReplicationTelemetry records replication metrics and spans
func WithReplicationTelemetry(mp metric.MeterProvider, tp trace.TracerProvider) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		cfg.meterProvider = mp
		cfg.tracerProvider = tp
	}
}

// StatusDirectory returns the directory per-target status files live in
func StatusDirectory(cfg *config.Config) string {
	return cfg.GetDataDir()
}

// NewOrchestrator builds the orchestrator for the configured replications and targets
func NewOrchestrator(cfg *config.Config, opts ...OrchestratorOption) (*replication.Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	oc := &orchestratorConfig{}
	for _, opt := range opts {
		opt(oc)
	}

	targets, err := replication.TargetsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	if oc.client == nil {
		oc.client = httpclient.NewDefaultClient(httpclient.WithTimeout(cfg.Client.GetTimeout()))
	}
	if oc.tracker == nil {
		oc.tracker = status.NewTracker(status.NewFileStatusPersistence(StatusDirectory(cfg)))
	}

	orchestratorOpts := []replication.Option{replication.WithTracker(oc.tracker)}
	if oc.meterProvider != nil {
		metrics, err := telemetry.NewReplicationMetrics(oc.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create replication metrics: %w", err)
		}
		orchestratorOpts = append(orchestratorOpts, replication.WithMetrics(metrics))
	}
	if oc.tracerProvider != nil {
		orchestratorOpts = append(orchestratorOpts, replication.WithTracer(oc.tracerProvider.Tracer(ReplicationTracerName)))
	}

	return replication.New(replication.ConfigurationsFromConfig(cfg), targets, oc.client, orchestratorOpts...), nil
}
