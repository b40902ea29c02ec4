package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPassesValidate(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("open_threshold_pct: 1.5\nquote_filter: USD\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.OpenThresholdPct)
	assert.Equal(t, "USD", cfg.QuoteFilter)
	assert.Equal(t, Default().ScanIntervalSec, cfg.ScanIntervalSec)
}

func TestValidateRejectsNegativeThreshold(t *testing.T) {
	cfg := Default()
	cfg.OpenThresholdPct = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsLowMinVenues(t *testing.T) {
	cfg := Default()
	cfg.MinVenuesPerInstrument = 1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsDropAfterBelowStaleAfter(t *testing.T) {
	cfg := Default()
	cfg.DropAfterSec = cfg.StaleAfterSec
	assert.Error(t, cfg.Validate())
}

func TestFallbackInstrumentListConvertsStrings(t *testing.T) {
	cfg := Default()
	cfg.FallbackInstruments = []string{"BTC/USDT", "ETH/USDT"}
	list := cfg.FallbackInstrumentList()
	require.Len(t, list, 2)
	assert.Equal(t, "BTC/USDT", string(list[0]))
}
