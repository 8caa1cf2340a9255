package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/notetasks/internal/core/async"
	repo "github.com/joseph-ayodele/notetasks/internal/repository"
	"github.com/joseph-ayodele/notetasks/internal/server"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		db, err := server.ConnectDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close(logger)

		if err := repo.Migrate(ctx, db, logger); err != nil {
			return err
		}
		if cfg.Jobs.QueueDriver == "river" {
			logger.Info("migrating river schema")
			if err := async.MigrateRiver(ctx, db.Pool); err != nil {
				return err
			}
		}
		logger.Info("db migrated")
		return nil
	},
}
