package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flipfinder/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "flipfinder",
	Short: "Census-driven flip opportunity ranking for Central Indiana",
	Long:  "Fetches tract demographics from the ACS, scores each tract's flip investment potential, optionally enriches with live market velocity, and ranks tracts or neighborhoods.",
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
