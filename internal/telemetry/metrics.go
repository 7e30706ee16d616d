package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// ReplicationMetricsMeterName is the name used for the replication metrics meter
	ReplicationMetricsMeterName = "github.com/stacklok/content-replicator/replication"

	// ReceiverMetricsMeterName is the name used for the target API metrics meter
	ReceiverMetricsMeterName = "github.com/stacklok/content-replicator/receiver"
)

// ReplicationMetrics holds the OpenTelemetry instruments for outbound replication
type ReplicationMetrics struct {
	targetDuration metric.Float64Histogram
	requestsTotal  metric.Int64Counter
	failuresTotal  metric.Int64Counter
}

// NewReplicationMetrics creates a new ReplicationMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewReplicationMetrics(provider metric.MeterProvider) (*ReplicationMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ReplicationMetricsMeterName)

	targetDuration, err := meter.Float64Histogram(
		"replicator_target_duration_seconds",
		metric.WithDescription("Duration of replicating one published node to one target"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	requestsTotal, err := meter.Int64Counter(
		"replicator_target_requests_total",
		metric.WithDescription("Requests sent to replication targets"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	failuresTotal, err := meter.Int64Counter(
		"replicator_failures_total",
		metric.WithDescription("Replication attempts that did not complete, by phase"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &ReplicationMetrics{
		targetDuration: targetDuration,
		requestsTotal:  requestsTotal,
		failuresTotal:  failuresTotal,
	}, nil
}

// RecordTargetDuration records how long replicating to a target took and how it ended
func (m *ReplicationMetrics) RecordTargetDuration(ctx context.Context, target, outcome string, duration time.Duration) {
	if m == nil || m.targetDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("target", target),
		attribute.String("outcome", outcome),
	}

	m.targetDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRequest counts a request to a target. A zero status code marks a transport failure.
func (m *ReplicationMetrics) RecordRequest(ctx context.Context, target, method, resource string, statusCode int) {
	if m == nil || m.requestsTotal == nil {
		return
	}

	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	attrs := []attribute.KeyValue{
		attribute.String("target", target),
		attribute.String("method", method),
		attribute.String("resource", resource),
		attribute.String("status_code", status),
	}

	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFailure counts a replication attempt that stopped in the given phase
func (m *ReplicationMetrics) RecordFailure(ctx context.Context, target, phase string) {
	if m == nil || m.failuresTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("target", target),
		attribute.String("phase", phase),
	}

	m.failuresTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// ReceiverMetrics holds the OpenTelemetry instruments for the target API
type ReceiverMetrics struct {
	operationsTotal metric.Int64Counter
}

// NewReceiverMetrics creates a new ReceiverMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewReceiverMetrics(provider metric.MeterProvider) (*ReceiverMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	operationsTotal, err := provider.Meter(ReceiverMetricsMeterName).Int64Counter(
		"replicator_receiver_operations_total",
		metric.WithDescription("Content changes applied by the target API"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	return &ReceiverMetrics{operationsTotal: operationsTotal}, nil
}

// RecordOperation counts a create, update or delete of a resource
func (m *ReceiverMetrics) RecordOperation(ctx context.Context, resource, operation string, success bool) {
	if m == nil || m.operationsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("resource", resource),
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	}

	m.operationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
