// Package config loads backtest configuration from a YAML file, an optional
// .env file, and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Data sources.
const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"
	SourceYahoo  = "yahoo"
)

// Config holds all backtest configuration.
type Config struct {
	Strategy  StrategyConfig  `yaml:"strategy"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Data      DataConfig      `yaml:"data"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
}

// StrategyConfig sets indicator windows and the trend-strength filter.
type StrategyConfig struct {
	FastWindow   int     `yaml:"fast_window"`
	SlowWindow   int     `yaml:"slow_window"`
	ATRWindow    int     `yaml:"atr_window"`
	ADXWindow    int     `yaml:"adx_window"`
	ADXThreshold float64 `yaml:"adx_threshold"`
}

// PortfolioConfig sets simulator parameters.
type PortfolioConfig struct {
	InitialCash    float64 `yaml:"initial_cash"`
	TradeSize      float64 `yaml:"trade_size"`
	LossPrevention bool    `yaml:"loss_prevention"`
	Pyramiding     bool    `yaml:"pyramiding"`
}

// DataConfig selects the bar source and universe.
type DataConfig struct {
	Tickers    []string `yaml:"tickers"`
	From       string   `yaml:"from"` // YYYY-MM-DD; empty = one year before To
	To         string   `yaml:"to"`   // YYYY-MM-DD; empty = today
	Source     string   `yaml:"source"`
	CSVPath    string   `yaml:"csv_path"`
	SQLitePath string   `yaml:"sqlite_path"`
	Workers    int      `yaml:"workers"`
}

// RedisConfig configures result publishing. Empty Addr disables it.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	StreamPrefix string `yaml:"stream_prefix"`
}

// MetricsConfig configures the Pushgateway. Empty Pushgateway disables it.
type MetricsConfig struct {
	Pushgateway string `yaml:"pushgateway"`
	Job         string `yaml:"job"`
}

// NotifyConfig configures end-of-run alerts. Each channel is enabled by
// setting its endpoint or token.
type NotifyConfig struct {
	WebhookURL    string  `yaml:"webhook_url"`
	TelegramToken string  `yaml:"telegram_token"`
	TelegramChat  string  `yaml:"telegram_chat"`
	LossAlertPct  float64 `yaml:"loss_alert_pct"` // warn when return < -pct
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Strategy: StrategyConfig{
			FastWindow:   10,
			SlowWindow:   50,
			ATRWindow:    14,
			ADXWindow:    14,
			ADXThreshold: 25,
		},
		Portfolio: PortfolioConfig{
			InitialCash: 100000,
			TradeSize:   1000,
		},
		Data: DataConfig{
			Tickers:    append([]string(nil), Nasdaq100...),
			Source:     SourceCSV,
			CSVPath:    "data/bars.csv",
			SQLitePath: "data/backtest.db",
			Workers:    8,
		},
		Redis:   RedisConfig{StreamPrefix: "backtest"},
		Metrics: MetricsConfig{Job: "backtest"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (if non-empty) over the defaults, then applies .env and
// environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config load: parse YAML: %w", err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Data.Source = getEnv("BACKTEST_SOURCE", cfg.Data.Source)
	cfg.Data.CSVPath = getEnv("CSV_PATH", cfg.Data.CSVPath)
	cfg.Data.SQLitePath = getEnv("SQLITE_PATH", cfg.Data.SQLitePath)
	cfg.Data.From = getEnv("BACKTEST_FROM", cfg.Data.From)
	cfg.Data.To = getEnv("BACKTEST_TO", cfg.Data.To)
	if v := os.Getenv("BACKTEST_TICKERS"); v != "" {
		cfg.Data.Tickers = SplitTickers(v)
	}
	cfg.Data.Workers = getEnvInt("BACKTEST_WORKERS", cfg.Data.Workers)

	cfg.Portfolio.InitialCash = getEnvFloat("INITIAL_CASH", cfg.Portfolio.InitialCash)
	cfg.Portfolio.TradeSize = getEnvFloat("TRADE_SIZE", cfg.Portfolio.TradeSize)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Metrics.Pushgateway = getEnv("PUSHGATEWAY_URL", cfg.Metrics.Pushgateway)

	cfg.Notify.WebhookURL = getEnv("WEBHOOK_URL", cfg.Notify.WebhookURL)
	cfg.Notify.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.Notify.TelegramToken)
	cfg.Notify.TelegramChat = getEnv("TELEGRAM_CHAT_ID", cfg.Notify.TelegramChat)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
}

// Range resolves the date range relative to now.
func (c *Config) Range(now time.Time) (from, to time.Time, err error) {
	to = model.Day(now)
	if c.Data.To != "" {
		if to, err = time.Parse(model.DateLayout, c.Data.To); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: data.to %q: %v", ErrInvalid, c.Data.To, err)
		}
	}
	from = to.AddDate(-1, 0, 0)
	if c.Data.From != "" {
		if from, err = time.Parse(model.DateLayout, c.Data.From); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: data.from %q: %v", ErrInvalid, c.Data.From, err)
		}
	}
	return from, to, nil
}

// Validate rejects configurations the engine or simulator cannot run. now
// resolves an open-ended date range, as in Range.
func (c *Config) Validate(now time.Time) error {
	s := c.Strategy
	switch {
	case s.FastWindow < 1, s.SlowWindow < 1, s.ATRWindow < 1, s.ADXWindow < 1:
		return fmt.Errorf("%w: indicator windows must be >= 1", ErrInvalid)
	case s.SlowWindow < s.FastWindow:
		return fmt.Errorf("%w: slow_window %d < fast_window %d", ErrInvalid, s.SlowWindow, s.FastWindow)
	case c.Portfolio.TradeSize <= 0:
		return fmt.Errorf("%w: trade_size must be > 0", ErrInvalid)
	case c.Portfolio.InitialCash < 0:
		return fmt.Errorf("%w: initial_cash must be >= 0", ErrInvalid)
	}

	switch c.Data.Source {
	case SourceCSV, SourceSQLite, SourceYahoo:
	default:
		return fmt.Errorf("%w: unknown data.source %q", ErrInvalid, c.Data.Source)
	}

	from, to, err := c.Range(now)
	if err != nil {
		return err
	}
	if from.After(to) {
		return fmt.Errorf("%w: data.from %s after data.to %s", ErrInvalid,
			from.Format(model.DateLayout), to.Format(model.DateLayout))
	}
	return nil
}

// SplitTickers parses a comma-separated ticker list, dropping blanks.
func SplitTickers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config: ignoring invalid integer", slog.String("key", key), slog.String("value", v))
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config: ignoring invalid number", slog.String("key", key), slog.String("value", v))
		return fallback
	}
	return f
}
