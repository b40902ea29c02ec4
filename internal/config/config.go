// Package config loads the single immutable configuration value every
// component of the detector is built from. Components receive only the
// fields they need; nothing reaches back into this package at runtime.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
)

// Config is the configuration surface recognized by the core, per
// SPEC_FULL.md §6. Durations are expressed in the YAML file as seconds
// (an int) and converted to time.Duration on load.
type Config struct {
	ScanIntervalSec         int     `yaml:"scan_interval_sec"`
	OpenThresholdPct        float64 `yaml:"open_threshold_pct"`
	CloseThresholdPct       float64 `yaml:"close_threshold_pct"`
	AlertCooldownSec        int     `yaml:"alert_cooldown_sec"`
	MinProfit               float64 `yaml:"min_profit"`
	NotionalUnits           float64 `yaml:"notional_units"`
	MinCloseAlertDurationSec int    `yaml:"min_close_alert_duration_sec"`
	MaxOpportunityAgeSec    int     `yaml:"max_opportunity_age_sec"`
	StaleAfterSec           int     `yaml:"stale_after_sec"`
	DropAfterSec            int     `yaml:"drop_after_sec"`
	HistorySize             int     `yaml:"history_size"`
	MinVenuesPerInstrument  int     `yaml:"min_venues_per_instrument"`
	QuoteFilter             string  `yaml:"quote_filter"`
	EnableFallbacks         bool    `yaml:"enable_fallbacks"`
	FallbackInstruments     []string `yaml:"fallback_instruments"`
	WsTimeoutSec            int     `yaml:"ws_timeout_sec"`
	ReconnectDelaySec       int     `yaml:"reconnect_delay_sec"`
	FailureCooldownSec      int     `yaml:"failure_cooldown_sec"`
	HealthIntervalSec       int     `yaml:"health_interval_sec"`
	EnableClosedAlerts      bool    `yaml:"enable_closed_alerts"`

	// Ambient-only fields: govern infrastructure, not detection
	// semantics, so they have no entry in spec.md's table.
	CatalogCacheTTLSec int    `yaml:"catalog_cache_ttl_sec"`
	RedisAddr          string `yaml:"redis_addr"`
	LogLevel           string `yaml:"log_level"`
}

// Default returns the configuration with every default from spec.md §6
// applied.
func Default() Config {
	return Config{
		ScanIntervalSec:          10,
		OpenThresholdPct:         0.7,
		CloseThresholdPct:        0.5,
		AlertCooldownSec:         5 * 60,
		MinProfit:                10,
		NotionalUnits:            1000,
		MinCloseAlertDurationSec: 2 * 60,
		MaxOpportunityAgeSec:     2 * 60 * 60,
		StaleAfterSec:            60,
		DropAfterSec:             5 * 60,
		HistorySize:              100,
		MinVenuesPerInstrument:   2,
		QuoteFilter:              "USDT",
		EnableFallbacks:          false,
		FallbackInstruments:      nil,
		WsTimeoutSec:             10,
		ReconnectDelaySec:        5,
		FailureCooldownSec:       30 * 60,
		HealthIntervalSec:        5 * 60,
		EnableClosedAlerts:       true,
		CatalogCacheTTLSec:       5 * 60,
		RedisAddr:                "",
		LogLevel:                 "info",
	}
}

// Load reads a YAML file at path, overlaying it onto Default(), and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate rejects nonsensical thresholds at startup, per the
// ConfigurationError error kind in spec.md §7.
func (c Config) Validate() error {
	checks := []struct {
		name string
		val  float64
	}{
		{"open_threshold_pct", c.OpenThresholdPct},
		{"close_threshold_pct", c.CloseThresholdPct},
		{"min_profit", c.MinProfit},
		{"notional_units", c.NotionalUnits},
	}
	for _, chk := range checks {
		if math.IsNaN(chk.val) {
			return fmt.Errorf("%s is NaN", chk.name)
		}
		if chk.val < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", chk.name, chk.val)
		}
	}
	if c.ScanIntervalSec <= 0 {
		return fmt.Errorf("scan_interval_sec must be positive")
	}
	if c.MinVenuesPerInstrument < 2 {
		return fmt.Errorf("min_venues_per_instrument must be >= 2")
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive")
	}
	if c.StaleAfterSec <= 0 {
		return fmt.Errorf("stale_after_sec must be positive")
	}
	if c.DropAfterSec <= c.StaleAfterSec {
		return fmt.Errorf("drop_after_sec must exceed stale_after_sec")
	}
	return nil
}

func (c Config) ScanInterval() time.Duration      { return time.Duration(c.ScanIntervalSec) * time.Second }
func (c Config) AlertCooldown() time.Duration     { return time.Duration(c.AlertCooldownSec) * time.Second }
func (c Config) MinCloseAlertDuration() time.Duration {
	return time.Duration(c.MinCloseAlertDurationSec) * time.Second
}
func (c Config) MaxOpportunityAge() time.Duration { return time.Duration(c.MaxOpportunityAgeSec) * time.Second }
func (c Config) StaleAfter() time.Duration        { return time.Duration(c.StaleAfterSec) * time.Second }
func (c Config) DropAfter() time.Duration         { return time.Duration(c.DropAfterSec) * time.Second }
func (c Config) WsTimeout() time.Duration         { return time.Duration(c.WsTimeoutSec) * time.Second }
func (c Config) ReconnectDelay() time.Duration     { return time.Duration(c.ReconnectDelaySec) * time.Second }
func (c Config) FailureCooldown() time.Duration   { return time.Duration(c.FailureCooldownSec) * time.Second }
func (c Config) HealthInterval() time.Duration    { return time.Duration(c.HealthIntervalSec) * time.Second }
func (c Config) CatalogCacheTTL() time.Duration   { return time.Duration(c.CatalogCacheTTLSec) * time.Second }

// FallbackInstrumentList converts the configured fallback symbol strings
// into the core's canonical Instrument type.
func (c Config) FallbackInstrumentList() []model.Instrument {
	out := make([]model.Instrument, len(c.FallbackInstruments))
	for i, s := range c.FallbackInstruments {
		out[i] = model.Instrument(s)
	}
	return out
}
