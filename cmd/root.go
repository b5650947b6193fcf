package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xthestreams/current-rms-watcher/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "current-rms-watcher",
	Short: "Forecast and risk dashboard backend for Current RMS",
	Long:  "Mirrors Current RMS opportunities via webhooks, annotates them with reviewer forecast metadata, and serves weighted-forecast and risk-scoring APIs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
