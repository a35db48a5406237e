package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sdkkds2125/FMA-SMA-ATX/config"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/indicator"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/logger"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/marketdata/csvfeed"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/marketdata/yahoo"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/metrics"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/notification"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/pipeline"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/portfolio"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/report"
	redisstore "github.com/sdkkds2125/FMA-SMA-ATX/internal/store/redis"
	sqlitestore "github.com/sdkkds2125/FMA-SMA-ATX/internal/store/sqlite"
)

// dataFlags are shared by run and fetch.
type dataFlags struct {
	tickers string
	from    string
	to      string
	source  string
	csvPath string
	dbPath  string
	workers int
}

func (f *dataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tickers, "tickers", "", "Comma-separated tickers (default: Nasdaq-100)")
	cmd.Flags().StringVar(&f.from, "from", "", "First date, YYYY-MM-DD (default: one year before --to)")
	cmd.Flags().StringVar(&f.to, "to", "", "Last date, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&f.source, "source", "", "Bar source: csv | sqlite | yahoo")
	cmd.Flags().StringVar(&f.csvPath, "csv", "", "CSV bars path")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "SQLite database path")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent instruments / downloads")
}

func (f *dataFlags) apply(cfg *config.Config) {
	if f.tickers != "" {
		cfg.Data.Tickers = config.SplitTickers(f.tickers)
	}
	if f.from != "" {
		cfg.Data.From = f.from
	}
	if f.to != "" {
		cfg.Data.To = f.to
	}
	if f.source != "" {
		cfg.Data.Source = f.source
	}
	if f.csvPath != "" {
		cfg.Data.CSVPath = f.csvPath
	}
	if f.dbPath != "" {
		cfg.Data.SQLitePath = f.dbPath
	}
	if f.workers > 0 {
		cfg.Data.Workers = f.workers
	}
}

func runCmd() *cobra.Command {
	var (
		data           dataFlags
		outDir         string
		journal        bool
		showTrades     int
		cash           float64
		tradeSize      float64
		lossPrevention bool
		pyramiding     bool
		threshold      float64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute indicators, simulate the portfolio and report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data.apply(cfg)
			if cmd.Flags().Changed("cash") {
				cfg.Portfolio.InitialCash = cash
			}
			if cmd.Flags().Changed("trade-size") {
				cfg.Portfolio.TradeSize = tradeSize
			}
			if cmd.Flags().Changed("loss-prevention") {
				cfg.Portfolio.LossPrevention = lossPrevention
			}
			if cmd.Flags().Changed("pyramiding") {
				cfg.Portfolio.Pyramiding = pyramiding
			}
			if cmd.Flags().Changed("adx-threshold") {
				cfg.Strategy.ADXThreshold = threshold
			}
			now := nowFunc()
			if err := cfg.Validate(now); err != nil {
				return err
			}

			ctx := logger.WithRunID(cmd.Context(), logger.NewRunID())
			log := slog.Default()

			reg := prometheus.NewRegistry()
			prom := metrics.NewMetrics(reg)

			var db *sqlitestore.Store
			openDB := func() (*sqlitestore.Store, error) {
				if db != nil {
					return db, nil
				}
				db, err = sqlitestore.Open(cfg.Data.SQLitePath)
				if err == nil {
					db.SetMetrics(prom)
				}
				return db, err
			}
			defer func() {
				if db != nil {
					db.Close()
				}
			}()

			var src model.BarSource
			switch cfg.Data.Source {
			case config.SourceCSV:
				src = &csvfeed.Source{Path: cfg.Data.CSVPath}
			case config.SourceSQLite:
				if src, err = openDB(); err != nil {
					return err
				}
			case config.SourceYahoo:
				src = yahoo.New(yahoo.Options{Workers: cfg.Data.Workers})
			}

			var sinks []model.RunSink
			if journal {
				store, err := openDB()
				if err != nil {
					return err
				}
				sinks = append(sinks, store)
			}
			if cfg.Redis.Addr != "" {
				pub, err := redisstore.New(ctx, redisstore.Config{
					Addr:         cfg.Redis.Addr,
					Password:     cfg.Redis.Password,
					DB:           cfg.Redis.DB,
					StreamPrefix: cfg.Redis.StreamPrefix,
				}, prom)
				if err != nil {
					log.Warn("redis unavailable, results will not be published", slog.Any("err", err))
				} else {
					defer pub.Close()
					sinks = append(sinks, pub)
				}
			}

			var notifiers notification.Multi
			if cfg.Notify.WebhookURL != "" {
				notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
			}
			if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChat != "" {
				notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChat))
			}
			if len(notifiers) > 0 {
				alerts := notification.NewRunAlerts(notifiers, cfg.Portfolio.InitialCash)
				alerts.LossAlertPct = cfg.Notify.LossAlertPct
				sinks = append(sinks, alerts)
			}

			from, to, err := cfg.Range(now)
			if err != nil {
				return err
			}
			svc := pipeline.New(pipeline.Config{
				Tickers: cfg.Data.Tickers,
				From:    from,
				To:      to,
				Indicators: indicator.Config{
					FastWindow: cfg.Strategy.FastWindow,
					SlowWindow: cfg.Strategy.SlowWindow,
					ATRWindow:  cfg.Strategy.ATRWindow,
					ADXWindow:  cfg.Strategy.ADXWindow,
				},
				ADXThreshold: cfg.Strategy.ADXThreshold,
				Portfolio: portfolio.Config{
					InitialCash:    cfg.Portfolio.InitialCash,
					TradeSize:      cfg.Portfolio.TradeSize,
					LossPrevention: cfg.Portfolio.LossPrevention,
					Pyramiding:     cfg.Portfolio.Pyramiding,
				},
				Workers: cfg.Data.Workers,
			}, src, prom, log, sinks...)

			rep, err := svc.Run(ctx)
			if err != nil {
				return err
			}

			console := report.NewConsole(os.Stdout)
			console.Summary(rep.RunID, rep.Summary)
			console.Positions(rep.Positions, portfolio.LastPrices(rep.Records))
			console.Trades(rep.Result.Trades, showTrades)

			if outDir != "" {
				if err := report.WriteDir(outDir, rep.Result.Trades, rep.Result.History, rep.Records); err != nil {
					return err
				}
				fmt.Printf("\nResults written to %s\n", outDir)
			}

			if cfg.Metrics.Pushgateway != "" {
				if err := metrics.Push(ctx, cfg.Metrics.Pushgateway, cfg.Metrics.Job, reg); err != nil {
					log.Warn("metrics push failed", slog.Any("err", err))
				}
			}
			return nil
		},
	}

	data.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for trades/history/indicators CSVs")
	cmd.Flags().BoolVar(&journal, "journal", false, "Persist the run to the SQLite journal")
	cmd.Flags().IntVar(&showTrades, "show-trades", 20, "Trades to print (0 = all)")
	cmd.Flags().Float64Var(&cash, "cash", 0, "Initial cash")
	cmd.Flags().Float64Var(&tradeSize, "trade-size", 0, "Cash spent per buy")
	cmd.Flags().BoolVar(&lossPrevention, "loss-prevention", false, "Never sell below the average entry price")
	cmd.Flags().BoolVar(&pyramiding, "pyramiding", false, "Allow adding to open positions")
	cmd.Flags().Float64Var(&threshold, "adx-threshold", 0, "Minimum ADX for a buy")
	return cmd
}
