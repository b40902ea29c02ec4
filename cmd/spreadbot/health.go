package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/ui"
)

func healthCmd(ctx context.Context, configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe every venue adapter once and print a status snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)
			a := buildApp(cfg, logger)

			for _, adapter := range a.registry.All() {
				if err := adapter.Start(cmd.Context()); err != nil {
					logger.Warn().Err(err).Str("venue", string(adapter.Venue())).Msg("adapter start failed")
				}
			}

			snap := a.health.Probe()
			ui.PrintVenueHealth(snap.Working, snap.Failed)
			return nil
		},
	}
	return cmd
}
