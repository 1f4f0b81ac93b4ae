package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crm-etl",
	Short: "CRM flat-file ETL loader",
	Long:  "Validates CRM exports (companies, contacts, opportunities, activities) from CSV/JSON/XLSX and loads them incrementally into a relational store, reporting every rejected record.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return cfg.Validate()
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
