package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sql-question-agent/internal/app"
	"sql-question-agent/internal/config"
	"sql-question-agent/internal/database"
)

type rootOptions struct {
	migrate bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "sqlqa",
		Short:         "Ask natural-language questions about a SQL database",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.migrate, "migrate", false, "apply the demo schema before starting (sqlite and postgres only)")

	cmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newMigrateCmd(),
	)
	return cmd
}

// loadConfig reads the environment and installs a text logger on stderr so
// command output on stdout stays clean.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func buildApp(ctx context.Context, opts *rootOptions) (*app.App, *slog.Logger, config.Config, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, config.Config{}, err
	}
	a, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		return nil, nil, config.Config{}, err
	}
	if opts.migrate {
		if err := database.Migrate(ctx, a.DB); err != nil {
			_ = a.Close()
			return nil, nil, config.Config{}, err
		}
	}
	return a, logger, cfg, nil
}
