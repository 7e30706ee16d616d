package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/stacklok/content-replicator/database"
	"github.com/stacklok/content-replicator/internal/config"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for the PostgreSQL target store. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	addConfigFlag(cmd, true)

	cmd.AddCommand(newMigrateUpCmd(), newMigrateDownCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create the target store schema",
		Long: `Create the tables of the PostgreSQL target store. The schema is created
idempotently, running it against an up to date database changes nothing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd, "About to create the target store schema", database.MigrateUp)
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Drop the target store schema",
		Long: `Drop the tables of the PostgreSQL target store.
WARNING: This removes all replicated content. Use with caution.

Examples:
  content-replicator migrate down --config config.yaml --yes`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd,
				"WARNING: This will drop all replicated content", database.MigrateDown)
		},
	}
}

type migration func(ctx context.Context, db database.Execer) error

func runMigration(cmd *cobra.Command, prompt string, migrate migration) error {
	ctx := cmd.Context()

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required")
	}

	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}
	if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), describeDatabase(prompt, cfg.Database)) {
		slog.Info("Migration cancelled by user")
		return nil
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return fmt.Errorf("failed to build connection string: %w", err)
	}
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(ctx); closeErr != nil {
			slog.Error("Error closing database connection", "error", closeErr)
		}
	}()

	slog.Info("Running database migration", "command", cmd.Name())
	if err := migrate(ctx, conn); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("Migration completed successfully")
	return nil
}

func describeDatabase(prompt string, db *config.DatabaseConfig) string {
	return fmt.Sprintf("%s on %s@%s:%d/%s. Continue?", prompt, db.User, db.Host, db.Port, db.Database)
}

// confirm asks a yes/no question on out and reads the answer from in
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	_, _ = fmt.Fprintf(out, "%s (yes/no): ", prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "y":
		return true
	default:
		return false
	}
}
