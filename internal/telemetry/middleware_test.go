package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestHTTPMetrics_Middleware(t *testing.T) {
	t.Parallel()

	t.Run("passes through when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *HTTPMetrics
		wrapped := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rr := httptest.NewRecorder()
		wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusTeapot, rr.Code)
	})

	t.Run("records the chi route pattern", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		mw, err := MetricsMiddleware(mp)
		require.NoError(t, err)

		r := chi.NewRouter()
		r.Use(mw)
		r.Get("/replicator/nodes/{identifier}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/replicator/nodes/abc", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)

		found := collect(t, reader, HTTPMetricsMeterName)
		sum, ok := found["replicator_http_requests_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		route, _ := sum.DataPoints[0].Attributes.Value("route")
		assert.Equal(t, "/replicator/nodes/{identifier}", route.AsString())
		status, _ := sum.DataPoints[0].Attributes.Value("status_code")
		assert.Equal(t, "404", status.AsString())
	})
}

func TestTracingMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("nil provider passes through", func(t *testing.T) {
		t.Parallel()

		handler := TracingMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("names spans after the route and flags errors", func(t *testing.T) {
		t.Parallel()

		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		defer func() { _ = tp.Shutdown(context.Background()) }()

		r := chi.NewRouter()
		r.Use(TracingMiddleware(tp))
		r.Post("/replicator/sites", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/replicator/sites", nil))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "POST /replicator/sites", spans[0].Name())
		assert.Equal(t, codes.Error, spans[0].Status().Code)
	})
}
