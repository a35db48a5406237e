// cmd/backtest runs the trend-following moving-average strategy with an ADX
// filter over a universe of daily bars and reports the simulated portfolio.
//
// Usage:
//
//	backtest run --config backtest.yaml --out results/
//	backtest fetch --tickers AAPL,MSFT --from 2024-01-01
//	backtest import --csv Nasdaq100Prices.csv
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sdkkds2125/FMA-SMA-ATX/config"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/logger"
)

var (
	version = "0.1.0"

	configPath string
	logLevel   string
	logFormat  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "backtest",
		Short:         "Daily-bar trend-following backtester",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug | info | warn | error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "text | json")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("backtest version %s\n", version)
		},
	}
}

// loadConfig reads the config file, applies root flags, and installs the
// logger. Subcommand flags are applied by the caller before Validate.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	logger.Init("backtest", logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	return cfg, nil
}
