package app

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/content-replicator/internal/config"
	"github.com/stacklok/content-replicator/internal/httpclient"
	"github.com/stacklok/content-replicator/internal/store/memory"
)

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "port only", addr: ":8080"},
		{name: "localhost", addr: "localhost:9090"},
		{name: "ip and port", addr: "127.0.0.1:8080"},
		{name: "empty", addr: "", wantErr: true},
		{name: "missing port", addr: "127.0.0.1:", wantErr: true},
		{name: "no colon", addr: "8080", wantErr: true},
		{name: "invalid port", addr: ":http-alt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &serverAppConfig{}
			err := WithAddress(tt.addr)(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, cfg.address)
		})
	}
}

func TestNewServerApp_RequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewServerApp(context.Background(), WithStore(memory.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestNewServerApp_RequiresAPIKey(t *testing.T) {
	t.Setenv(config.ServerAPIKeyEnv, "")

	_, err := NewServerApp(context.Background(),
		WithConfig(&config.Config{Server: &config.ServerConfig{}}),
		WithStore(memory.New()),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key configured")
}

func TestNewServerApp_InvalidNodeTypes(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Server: &config.ServerConfig{
		APIKey: "secret",
		NodeTypes: map[string]config.NodeTypeConfig{
			"Acme:Page": {Properties: map[string]config.PropertyConfig{"title": {Type: "text"}}},
		},
	}}
	_, err := NewServerApp(context.Background(), WithConfig(cfg), WithStore(memory.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile node types")
}

func TestServerApp_Lifecycle(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Server: &config.ServerConfig{APIKey: "secret", RequestTimeout: "5s"}}
	app, err := NewServerApp(context.Background(), WithConfig(cfg), WithStore(memory.New()))
	require.NoError(t, err)
	assert.Same(t, cfg, app.GetConfig())
	assert.Equal(t, config.DefaultServerAddress, app.GetHTTPServer().Addr)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() {
		served <- app.Serve(listener)
	}()

	base := "http://" + listener.Addr().String()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(base + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+"/replicator/sites", nil)
	require.NoError(t, err)
	resp, err = client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set(httpclient.APIKeyHeader, "secret")
	resp, err = client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, app.Stop(5*time.Second))
	require.NoError(t, <-served)
}
