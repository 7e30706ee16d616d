// Package database holds the schema of the postgres target store and the
// functions applying it.
package database

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/000001_init.up.sql
var initMigrationUp string

//go:embed migrations/000001_init.down.sql
var initMigrationDown string

// Execer runs a statement, satisfied by *pgx.Conn, *pgxpool.Pool and pgx.Tx
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// MigrateUp creates the schema. It is safe to run on an existing schema.
func MigrateUp(ctx context.Context, db Execer) error {
	_, err := db.Exec(ctx, initMigrationUp)
	return err
}

// MigrateDown drops the schema and all replicated content
func MigrateDown(ctx context.Context, db Execer) error {
	_, err := db.Exec(ctx, initMigrationDown)
	return err
}
