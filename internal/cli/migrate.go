package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"cf-quiz-service/internal/config"
	pgmigrations "cf-quiz-service/internal/infra/postgres/migrations"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// NewMigrateCmd creates (or with --rollback drops) the quiz_history table.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var rollback bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the history schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if rollback {
				return rollbackMigrations(cmd.Context(), cfg)
			}
			return runMigrationsWithConfig(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last applied migration group")
	return cmd
}

func newMigrator(cfg config.Config) (*migrate.Migrator, func() error, error) {
	if cfg.Postgres.URL == "" {
		return nil, nil, fmt.Errorf("postgres url not configured")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return migrate.NewMigrator(db, pgmigrations.Migrations), db.Close, nil
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	migrator, closeDB, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Printf("history schema up to date")
		return nil
	}
	log.Printf("migrations applied: %s", group)
	return nil
}

func rollbackMigrations(ctx context.Context, cfg config.Config) error {
	migrator, closeDB, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Rollback(ctx)
	if err != nil {
		return err
	}
	log.Printf("rolled back: %s", group)
	return nil
}
