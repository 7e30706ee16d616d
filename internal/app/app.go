// Package app provides application lifecycle management for the target API
// server and the construction of the replication orchestrator.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/stacklok/content-replicator/internal/config"
)

// ServerApp encapsulates all components needed to run the target API server.
// It provides lifecycle management and graceful shutdown capabilities.
type ServerApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server
}

// Start serves HTTP until the server is stopped or fails
func (app *ServerApp) Start() error {
	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Serve serves HTTP on an existing listener until the server is stopped or fails
func (app *ServerApp) Serve(listener net.Listener) error {
	slog.Info("Server listening", "address", listener.Addr().String())
	if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server and closes the store
func (app *ServerApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shutdownErr := app.httpServer.Shutdown(shutdownCtx)
	if err := app.components.Store.Close(); err != nil {
		slog.Error("Failed to close store", "error", err)
	}
	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *ServerApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *ServerApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
