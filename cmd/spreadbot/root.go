package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/config"
)

func Execute(ctx context.Context) error {
	var configPath string

	root := &cobra.Command{Use: "spreadbot", Short: "Cross-venue price-spread detector"}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults built in if omitted)")

	root.AddCommand(runCmd(ctx, &configPath))
	root.AddCommand(scanCmd(ctx, &configPath))
	root.AddCommand(healthCmd(ctx, &configPath))

	log.Info().Msg("spreadbot starting")
	return root.ExecuteContext(ctx)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func setupLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var writer = os.Stderr
	if term.IsTerminal(int(writer.Fd())) {
		return zerolog.New(zerolog.ConsoleWriter{Out: writer}).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}
