package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/notetasks/internal/core"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete finished jobs, their tasks and images older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Cleanup.Timeout)
		defer cancel()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		retention := cfg.Cleanup.Retention
		if cmd.Flags().Changed("days") {
			if cleanupDays < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			retention = time.Duration(cleanupDays) * 24 * time.Hour
		}

		n, err := core.NewCleaner(logger, a.jobs, a.store).Cleanup(ctx, retention)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d jobs older than %s\n", n, retention)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "Retention in days (defaults to CLEANUP_RETENTION)")
}
