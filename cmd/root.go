package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/niruguard/niruguard/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "niruguard",
	Short: "Procurement red-flag feature pipeline",
	Long:  "Links public procurement tenders, awards, contracts and suppliers, derives red-flag indicators, scores them into training tables, and serves supplier dossiers and single-contract analyses.",

	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
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
