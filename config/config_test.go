package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 10, cfg.Strategy.FastWindow)
	assert.Equal(t, 50, cfg.Strategy.SlowWindow)
	assert.Equal(t, 14, cfg.Strategy.ATRWindow)
	assert.Equal(t, 14, cfg.Strategy.ADXWindow)
	assert.Equal(t, 25.0, cfg.Strategy.ADXThreshold)
	assert.Equal(t, 100000.0, cfg.Portfolio.InitialCash)
	assert.Equal(t, 1000.0, cfg.Portfolio.TradeSize)
	assert.False(t, cfg.Portfolio.LossPrevention)
	assert.False(t, cfg.Portfolio.Pyramiding)
	assert.Len(t, cfg.Data.Tickers, len(Nasdaq100))
	assert.NoError(t, cfg.Validate(time.Now()))

	// Mutating the default must not touch the universe.
	cfg.Data.Tickers[0] = "X"
	assert.Equal(t, "AAPL", Nasdaq100[0])
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := writeYAML(t, `
strategy:
  fast_window: 5
  adx_threshold: 20
portfolio:
  loss_prevention: true
data:
  tickers: [MSFT, NVDA]
  from: "2024-01-02"
  to: "2024-06-28"
  source: sqlite
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Strategy.FastWindow)
	assert.Equal(t, 50, cfg.Strategy.SlowWindow, "unset keys keep defaults")
	assert.Equal(t, 20.0, cfg.Strategy.ADXThreshold)
	assert.True(t, cfg.Portfolio.LossPrevention)
	assert.Equal(t, []string{"MSFT", "NVDA"}, cfg.Data.Tickers)
	assert.Equal(t, SourceSQLite, cfg.Data.Source)
	require.NoError(t, cfg.Validate(time.Now()))

	from, to, err := cfg.Range(time.Now())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", from.Format("2006-01-02"))
	assert.Equal(t, "2024-06-28", to.Format("2006-01-02"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BACKTEST_TICKERS", " aapl, ,msft ")
	t.Setenv("TRADE_SIZE", "250")
	t.Setenv("BACKTEST_WORKERS", "not-a-number")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Data.Tickers)
	assert.Equal(t, 250.0, cfg.Portfolio.TradeSize)
	assert.Equal(t, 8, cfg.Data.Workers, "invalid int falls back")
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRange_DefaultsToOneYear(t *testing.T) {
	cfg := Default()
	now := time.Date(2025, 7, 15, 16, 30, 0, 0, time.UTC)
	from, to, err := cfg.Range(now)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-15", to.Format("2006-01-02"))
	assert.Equal(t, "2024-07-15", from.Format("2006-01-02"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero fast window", func(c *Config) { c.Strategy.FastWindow = 0 }},
		{"slow below fast", func(c *Config) { c.Strategy.SlowWindow = 5 }},
		{"zero adx window", func(c *Config) { c.Strategy.ADXWindow = 0 }},
		{"zero trade size", func(c *Config) { c.Portfolio.TradeSize = 0 }},
		{"negative cash", func(c *Config) { c.Portfolio.InitialCash = -1 }},
		{"unknown source", func(c *Config) { c.Data.Source = "parquet" }},
		{"bad date", func(c *Config) { c.Data.From = "01/02/2024" }},
		{"inverted range", func(c *Config) { c.Data.From, c.Data.To = "2024-06-01", "2024-01-01" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate(time.Now())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestValidate_UsesGivenClock(t *testing.T) {
	cfg := Default()
	cfg.Data.From = "2025-06-01"

	err := cfg.Validate(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	require.Error(t, err, "open-ended range ends before from")
	assert.True(t, errors.Is(err, ErrInvalid))

	assert.NoError(t, cfg.Validate(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)))
}
