package main

import (
	"context"
	"fmt"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// openPostgres loads config and connects to the relational store
func openPostgres(ctx context.Context) (*database.Service, *zap.Logger, error) {
	cfg := config.Load()
	if cfg.Store.Driver != "postgres" && cfg.Store.Driver != "" {
		return nil, nil, fmt.Errorf("migrations only apply to the postgres store, STORE_DRIVER is %q", cfg.Store.Driver)
	}

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, nil, err
	}
	return db, log, nil
}

// storefront-admin migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the postgres schema",
}

// storefront-admin migrate up
var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, log, err := openPostgres(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		defer log.Sync()

		return database.RunMigrations(db.DB(), log)
	},
}

// storefront-admin migrate down
var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openPostgres(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintln(cmd.OutOrStdout(), "Rolling back last migration")
		return database.RollbackMigration(db.DB())
	},
}

// storefront-admin migrate status
var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openPostgres(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		return database.GetMigrationStatus(db.DB())
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}
