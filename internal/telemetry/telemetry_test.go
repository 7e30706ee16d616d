package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tel)
	assert.NotNil(t, tel.TracerProvider())
	assert.NotNil(t, tel.MeterProvider())
	assert.Nil(t, tel.MetricsHandler())
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_PrometheusOnly(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Prometheus: true, DisableOTLP: true},
	}))
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	metrics, err := NewReplicationMetrics(tel.MeterProvider())
	require.NoError(t, err)
	metrics.RecordFailure(context.Background(), "edge", "site")

	handler := tel.MetricsHandler()
	require.NotNil(t, handler)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "replicator_failures_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{name: "nil config", config: nil},
		{name: "disabled config skips checks", config: &Config{Tracing: &TracingConfig{Enabled: true, Sampling: 3}}},
		{
			name:    "sampling out of range",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}},
			wantErr: "sampling must be between",
		},
		{
			name:    "no metrics exporter left",
			config:  &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, DisableOTLP: true}},
			wantErr: "at least one of OTLP or prometheus",
		},
		{
			name:   "prometheus only",
			config: &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, DisableOTLP: true, Prometheus: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, DefaultServiceName, cfg.GetServiceName())
	assert.Equal(t, DefaultEndpoint, cfg.GetEndpoint())
	assert.Equal(t, "unknown", cfg.GetServiceVersion())
	assert.InDelta(t, DefaultSampling, (&TracingConfig{}).GetSampling(), 0.0001)
}
