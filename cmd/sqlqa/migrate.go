package main

import (
	"github.com/spf13/cobra"

	"sql-question-agent/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create and seed the demo work order tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := database.Open(ctx, cfg.DB.Dialect, cfg.DB.ConnString(), database.DefaultPoolConfig(1))
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			logger.Info("migrations applied", "dialect", cfg.DB.Dialect)
			return nil
		},
	}
}
