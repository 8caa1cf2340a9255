package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	repo "github.com/joseph-ayodele/notetasks/internal/repository"
)

var (
	ingestSkipHidden bool
	ingestWait       time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Upload every image under a directory and process the resulting jobs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if err := repo.Migrate(ctx, a.db, logger); err != nil {
			a.db.Close(logger)
			return err
		}
		if err := a.startWorkers(ctx); err != nil {
			a.db.Close(logger)
			return err
		}

		results, stats, walkErr := a.ingest.IngestDirectory(ctx, args[0], ingestSkipHidden)
		for _, r := range results {
			if r.Err != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %s\n", r.SourcePath, r.Err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK   %s -> %s\n", r.SourcePath, r.JobID)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d matched=%d succeeded=%d failed=%d\n",
			stats.Scanned, stats.Matched, stats.Succeeded, stats.Failed)

		// the memory queue drains queued jobs on shutdown; retries still waiting on their delay are dropped
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ingestWait)
		defer cancel()
		a.close(shutdownCtx)
		return walkErr
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestSkipHidden, "skip-hidden", true, "Skip hidden files and directories")
	ingestCmd.Flags().DurationVar(&ingestWait, "wait", 10*time.Minute, "How long to wait for queued jobs before exiting")
}
