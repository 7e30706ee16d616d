package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/content-replicator/database"
	"github.com/stacklok/content-replicator/internal/config"
	"github.com/stacklok/content-replicator/internal/db"
	"github.com/stacklok/content-replicator/internal/store"
	"github.com/stacklok/content-replicator/internal/store/memory"
	"github.com/stacklok/content-replicator/internal/store/postgres"
)

// NewStore creates the store the target API serves from. Without a database
// configuration the content is held in memory. The postgres schema is applied
// when missing.
func NewStore(ctx context.Context, cfg *config.Config, tracer trace.Tracer) (store.Store, error) {
	if cfg == nil || cfg.Database == nil {
		slog.Info("No database configured, replicated content is kept in memory")
		return memory.New(), nil
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateUp(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply database schema: %w", err)
	}

	s, err := postgres.New(postgres.WithConnectionPool(pool), postgres.WithTracer(tracer))
	if err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("Using postgres store", "database", cfg.Database.Database)
	return s, nil
}
