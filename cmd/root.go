package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "stratcap",
	Short: "Private equity waterfall distribution engine",
	Long:  "Runs ordered-tier waterfall allocations with exact decimal arithmetic, apportions proceeds across investors, and keeps an immutable per-tier audit trail.",
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
