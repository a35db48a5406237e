package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdkkds2125/FMA-SMA-ATX/config"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/marketdata/csvfeed"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/marketdata/yahoo"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/portfolio"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/report"
	sqlitestore "github.com/sdkkds2125/FMA-SMA-ATX/internal/store/sqlite"
)

var nowFunc = time.Now

func fetchCmd() *cobra.Command {
	var (
		data   dataFlags
		noCSV  bool
		raw    bool
		update bool
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download daily bars from Yahoo Finance into SQLite and CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data.apply(cfg)
			cfg.Data.Source = config.SourceYahoo
			now := nowFunc()
			if err := cfg.Validate(now); err != nil {
				return err
			}
			from, to, err := cfg.Range(now)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := sqlitestore.Open(cfg.Data.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()

			if update {
				// Without --tickers, refresh whatever the cache already holds.
				if data.tickers == "" {
					cached, err := db.Tickers(ctx)
					if err != nil {
						return err
					}
					if len(cached) > 0 {
						cfg.Data.Tickers = cached
					}
				}
				if from, err = db.ResumeFrom(ctx, cfg.Data.Tickers, from); err != nil {
					return err
				}
				if from.After(to) {
					fmt.Printf("Bar cache is up to date through %s\n", to.Format(model.DateLayout))
					return nil
				}
			}

			client := yahoo.New(yahoo.Options{Workers: cfg.Data.Workers, Raw: raw})
			bars, err := client.LoadBars(ctx, cfg.Data.Tickers, from, to)
			if err != nil {
				return err
			}
			if err := db.WriteBars(ctx, bars); err != nil {
				return err
			}
			slog.Info("bars saved", slog.String("to", cfg.Data.SQLitePath), slog.Int("bars", len(bars)))

			if !noCSV {
				// An incremental download only holds the new days; export the
				// full cache instead so the CSV stays complete.
				out := bars
				if update {
					if out, err = db.LoadBars(ctx, cfg.Data.Tickers, time.Time{}, time.Time{}); err != nil {
						return err
					}
				}
				if err := (&csvfeed.Source{Path: cfg.Data.CSVPath}).WriteBars(ctx, out); err != nil {
					return err
				}
				slog.Info("bars saved", slog.String("to", cfg.Data.CSVPath), slog.Int("bars", len(out)))
			}

			fmt.Printf("Fetched %d bars for %d tickers (%s to %s)\n", len(bars), len(cfg.Data.Tickers),
				from.Format(model.DateLayout), to.Format(model.DateLayout))
			return nil
		},
	}
	data.register(cmd)
	cmd.Flags().BoolVar(&noCSV, "no-csv", false, "Skip writing the CSV file")
	cmd.Flags().BoolVar(&raw, "raw", false, "Keep unadjusted prices")
	cmd.Flags().BoolVar(&update, "update", false, "Only download days after each ticker's last cached bar")
	return cmd
}

func importCmd() *cobra.Command {
	var data dataFlags
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a CSV file into the SQLite bar cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data.apply(cfg)

			ctx := cmd.Context()
			// Import the whole file unless tickers or dates were given.
			var tickers []string
			if data.tickers != "" {
				tickers = cfg.Data.Tickers
			}
			var from, to time.Time
			if data.from != "" || data.to != "" {
				if from, to, err = cfg.Range(nowFunc()); err != nil {
					return err
				}
			}

			bars, err := (&csvfeed.Source{Path: cfg.Data.CSVPath}).LoadBars(ctx, tickers, from, to)
			if err != nil {
				return err
			}
			db, err := sqlitestore.Open(cfg.Data.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.WriteBars(ctx, bars); err != nil {
				return err
			}
			fmt.Printf("Imported %d bars from %s into %s\n", len(bars), cfg.Data.CSVPath, cfg.Data.SQLitePath)
			return nil
		},
	}
	data.register(cmd)
	return cmd
}

func runsCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
		runID  string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs recorded in the SQLite journal, or show one with --id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Data.SQLitePath = dbPath
			}
			db, err := sqlitestore.Open(cfg.Data.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if runID != "" {
				return showRun(ctx, db, runID, limit)
			}

			runs, err := db.Runs(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs journaled.")
				return nil
			}
			for _, r := range runs {
				fmt.Printf("%s  %s  trades=%d days=%d final=%s\n",
					r.CreatedAt.Format(time.RFC3339), r.RunID, r.Trades, r.Days, r.FinalValue)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "Runs (or trades with --id) to list (0 = all)")
	cmd.Flags().StringVar(&runID, "id", "", "Show the trades and valuation of one run")
	return cmd
}

func showRun(ctx context.Context, db *sqlitestore.Store, runID string, limit int) error {
	trades, err := db.RunTrades(ctx, runID)
	if err != nil {
		return err
	}
	history, err := db.RunHistory(ctx, runID)
	if err != nil {
		return err
	}
	if len(trades) == 0 && len(history) == 0 {
		return fmt.Errorf("run %s: nothing journaled", runID)
	}

	fmt.Printf("Run %s: %d trades over %d days", runID, len(trades), len(history))
	if n := len(history); n > 0 {
		dd := portfolio.MaxDrawdown(history)
		fmt.Printf(", %s to %s, final %s, max drawdown %.2f%%",
			history[0].Date.Format(model.DateLayout), history[n-1].Date.Format(model.DateLayout),
			report.Money(history[n-1].TotalValue), dd.MaxPct)
	}
	fmt.Println()
	report.NewConsole(os.Stdout).Trades(trades, limit)
	return nil
}
