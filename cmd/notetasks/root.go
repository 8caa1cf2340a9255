package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/notetasks/internal/common"
)

var (
	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "notetasks",
	Short:         "Turn photos of handwritten notes into task lists",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(dbhealthCmd)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
}

// loadConfig reads configuration and installs the default logger.
func loadConfig() (*common.Config, *slog.Logger, error) {
	cfg, err := common.LoadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}
	logger := common.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
