package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/ui"
)

func scanCmd(ctx context.Context, configPath *string) *cobra.Command {
	var warmup time.Duration
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run catalog discovery, collect one round of ticks, and print one scan's worth of opportunities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)
			a := buildApp(cfg, logger)

			if _, err := a.catalog.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("catalog refresh: %w", err)
			}
			if err := a.subscription.Start(); err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}

			logger.Info().Dur("warmup", warmup).Msg("collecting ticks before scanning")
			time.Sleep(warmup)

			a.engine.Scan(time.Now())

			snap := a.health.Probe()
			ui.PrintHeader(a.engine.ActiveCount(), len(snap.Working), len(snap.Working)+len(snap.Failed))
			ui.PrintOpportunities(a.engine.ActiveOpportunities())
			for _, closed := range a.engine.ClosedHistory() {
				fmt.Printf("closed: %s reason=%s duration=%s\n", closed.ID, closed.CloseReason, closed.Duration)
			}
			for a.sink.Len() > 0 {
				event, _, _ := a.sink.Dequeue()
				fmt.Printf("alert: %s kind=%s priority=%d\n", event.ID, event.Kind, event.Priority)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&warmup, "warmup", 15*time.Second, "how long to collect ticks before scanning")
	return cmd
}
