package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finsight/reportminer/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "reportminer",
	Short: "Financial metric extraction pipeline",
	Long:  "Splits parsed annual-report documents into overlapping chunks, extracts metrics through multiple LLM backends, reconciles claims by plurality vote, and serves scored results over HTTP.",
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
