package auth

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/stacklok/content-replicator/internal/httpclient"
)

// NewAPIKeyMiddleware rejects requests that do not carry the shared secret in
// the X-Replicator-Api-Key header. Requests to publicPaths pass unauthenticated.
// An empty key rejects every protected request.
func NewAPIKeyMiddleware(apiKey string, publicPaths ...string) func(http.Handler) http.Handler {
	expected := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path, publicPaths) {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get(httpclient.APIKeyHeader)
			if presented == "" {
				slog.Warn("Request without API key",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path)
				writeError(w, "missing API key")
				return
			}
			if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				slog.Warn("Request with invalid API key",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path)
				writeError(w, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	resp := struct {
		Error string `json:"error"`
	}{
		Error: description,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
