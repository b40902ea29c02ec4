package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func runCmd(ctx context.Context, configPath *string) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the detector as a long-lived daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			logger := setupLogger(cfg.LogLevel).With().Str("runID", uuid.New().String()[:8]).Logger()
			a := buildApp(cfg, logger)

			if _, err := a.catalog.Refresh(cmd.Context()); err != nil {
				logger.Warn().Err(err).Msg("initial catalog refresh failed")
			}
			if err := a.subscription.Start(); err != nil {
				return err
			}

			go a.engine.Run()
			go a.health.Run()
			go sweepLoop(cmd.Context(), a)

			logger.Info().Msg("detector running")
			<-cmd.Context().Done()
			logger.Info().Msg("shutting down")
			a.engine.Stop()
			a.health.Stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	return cmd
}

func sweepLoop(ctx context.Context, a *app) {
	ticker := time.NewTicker(a.cfg.DropAfter())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := a.store.Sweep(time.Now(), a.cfg.DropAfter())
			if removed > 0 {
				a.logger.Debug().Int("removed", removed).Msg("price store sweep")
			}
			if a.metrics != nil {
				a.metrics.PriceStoreSize.Set(float64(a.store.Size()))
			}
		}
	}
}
