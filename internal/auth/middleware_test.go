package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/content-replicator/internal/httpclient"
)

func TestNewAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		apiKey     string
		path       string
		header     string
		wantStatus int
		wantCalled bool
	}{
		{name: "valid key", apiKey: "secret", path: "/replicator/sites", header: "secret",
			wantStatus: http.StatusOK, wantCalled: true},
		{name: "missing key", apiKey: "secret", path: "/replicator/sites",
			wantStatus: http.StatusUnauthorized},
		{name: "wrong key", apiKey: "secret", path: "/replicator/sites", header: "guess",
			wantStatus: http.StatusUnauthorized},
		{name: "prefix of key", apiKey: "secret", path: "/replicator/sites", header: "sec",
			wantStatus: http.StatusUnauthorized},
		{name: "no key configured", apiKey: "", path: "/replicator/sites", header: "anything",
			wantStatus: http.StatusUnauthorized},
		{name: "public path", apiKey: "secret", path: "/health",
			wantStatus: http.StatusOK, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})
			handler := NewAPIKeyMiddleware(tt.apiKey, "/health")(next)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(httpclient.APIKeyHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			if tt.wantStatus == http.StatusUnauthorized {
				require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}
