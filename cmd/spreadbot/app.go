package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/alert"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/cache"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/catalog"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/config"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/failure"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/health"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/metrics"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/opportunity"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/pricestore"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/subscription"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/venue"
)

// app bundles every wired component, built once per CLI invocation from a
// loaded Config.
type app struct {
	cfg          config.Config
	logger       zerolog.Logger
	metrics      *metrics.Registry
	registry     *venue.Registry
	store        *pricestore.Store
	catalog      *catalog.Service
	subscription *subscription.Manager
	engine       *opportunity.Engine
	sink         *alert.QueueSink
	health       *health.Monitor
	notifier     *failure.LogNotifier
}

func buildApp(cfg config.Config, logger zerolog.Logger) *app {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	notifier := failure.NewLogNotifier(cfg.FailureCooldown(), logger, reg)
	registry := venue.NewRegistry(cfg.WsTimeout(), cfg.ReconnectDelay(), notifier)
	store := pricestore.New(cfg.HistorySize)
	c := cache.NewAuto(cfg.RedisAddr)

	catSvc := catalog.New(registry, c, catalog.Config{
		CacheTTL:               cfg.CatalogCacheTTL(),
		QuoteFilter:            cfg.QuoteFilter,
		MinVenuesPerInstrument: cfg.MinVenuesPerInstrument,
		FallbackInstruments:    cfg.FallbackInstrumentList(),
		EnableFallbacks:        cfg.EnableFallbacks,
		WsTimeout:              cfg.WsTimeout(),
	}, logger)

	subMgr := subscription.New(registry, catSvc, store, logger)
	sink := alert.NewQueueSink(1000, logger, reg)
	engine := opportunity.New(store, catSvc, sink, opportunity.Config{
		ScanInterval:          cfg.ScanInterval(),
		OpenThresholdPct:      cfg.OpenThresholdPct,
		CloseThresholdPct:     cfg.CloseThresholdPct,
		AlertCooldown:         cfg.AlertCooldown(),
		MinProfit:             cfg.MinProfit,
		NotionalUnits:         cfg.NotionalUnits,
		MinCloseAlertDuration: cfg.MinCloseAlertDuration(),
		MaxOpportunityAge:     cfg.MaxOpportunityAge(),
		StaleAfter:            cfg.StaleAfter(),
		EnableClosedAlerts:    cfg.EnableClosedAlerts,
		ClosedHistorySize:     1000,
		AlertRetries:          3,
	}, logger, reg)
	monitor := health.New(registry, subMgr, cfg.HealthInterval(), 30*time.Second, logger, reg)

	return &app{
		cfg:          cfg,
		logger:       logger,
		metrics:      reg,
		registry:     registry,
		store:        store,
		catalog:      catSvc,
		subscription: subMgr,
		engine:       engine,
		sink:         sink,
		health:       monitor,
		notifier:     notifier,
	}
}
