package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xraph/volshift/cloud"
	"github.com/xraph/volshift/config"
)

func newMigrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the store schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var clients *cloud.Clients
			if cfg.Store.Backend == config.BackendDynamoDB {
				awsCfg, err := cloud.LoadConfig(ctx, cfg.AWS)
				if err != nil {
					return err
				}
				clients = cloud.NewClients(awsCfg)
			}

			st, release, err := openStore(ctx, cfg.Store, clients, logger)
			if err != nil {
				return err
			}
			defer release(context.WithoutCancel(ctx))
			defer st.Close()

			if err := st.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("store migrated", slog.String("backend", cfg.Store.Backend))
			return nil
		},
	}
}
