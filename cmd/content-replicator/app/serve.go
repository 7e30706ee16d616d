package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/content-replicator/internal/app"
	"github.com/stacklok/content-replicator/internal/telemetry"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the target API server",
		Long: `Start the target API server receiving replicated content.

The server requires a configuration file (--config). Its server section sets
the listen address, the shared API key, the available site packages and the
node type declarations. A database section switches storage from memory to
PostgreSQL and applies the schema on start.

See examples/ directory for sample configurations.`,
		RunE: runServe,
	}

	cmd.Flags().String("address", "", "Address to listen on (overrides server.address)")
	addConfigFlag(cmd, false)

	if err := viper.BindPFlag("address", cmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	slog.Info("Loaded configuration", "path", configPath, "targets", len(cfg.Targets))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry), telemetry.WithRole(telemetry.RoleTarget))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	opts := []app.ServerAppOption{
		app.WithConfig(cfg),
		app.WithMeterProvider(tel.MeterProvider()),
		app.WithTracerProvider(tel.TracerProvider()),
	}
	if address := viper.GetString("address"); address != "" {
		opts = append(opts, app.WithAddress(address))
	}
	if handler := tel.MetricsHandler(); handler != nil {
		opts = append(opts, app.WithMetricsHandler(handler))
	}

	serverApp, err := app.NewServerApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server application: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(serverApp.Start)
	g.Go(func() error {
		<-gctx.Done()
		return serverApp.Stop(defaultGracefulTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
