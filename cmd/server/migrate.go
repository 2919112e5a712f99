package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-listings/internal/database"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runMigration("up", (*database.Migrator).Up)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runMigration("down", (*database.Migrator).Down)
		},
	})
	return cmd
}

func runMigration(direction string, step func(*database.Migrator) error) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	m, err := database.NewMigrator(cfg.MigrateURL())
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if err := step(m); err != nil {
		return err
	}
	log.Info("migrations applied", zap.String("direction", direction))
	return nil
}
