package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/notetasks/internal/server"
)

var dbhealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Check database connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db, err := server.ConnectDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close(logger)

		fmt.Fprintln(cmd.OutOrStdout(), "DB health OK")
		return nil
	},
}
