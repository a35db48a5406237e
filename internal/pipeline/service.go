// Package pipeline wires a bar source through the indicator engine and the
// portfolio simulator, then hands the results to the configured sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/indicator"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/logger"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/metrics"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/portfolio"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/strategy"
)

// ErrNoBars is returned when the source yields nothing for the request.
var ErrNoBars = errors.New("pipeline: no bars loaded")

// Config is everything one backtest run needs.
type Config struct {
	Tickers      []string
	From, To     time.Time
	Indicators   indicator.Config
	ADXThreshold float64
	Portfolio    portfolio.Config
	Workers      int
}

// Report is the outcome of a run.
type Report struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Bars      int
	PerTicker map[string][]model.IndicatorRecord
	Records   []model.IndicatorRecord // merged, date then ticker
	Result    portfolio.Result
	Summary   portfolio.Summary
	Positions []model.Position
}

// Service is the top-level orchestrator for a backtest.
type Service struct {
	cfg   Config
	src   model.BarSource
	sinks []model.RunSink
	prom  *metrics.Metrics
	log   *slog.Logger
}

// New creates a Service. prom and logger may be nil.
func New(cfg Config, src model.BarSource, prom *metrics.Metrics, log *slog.Logger, sinks ...model.RunSink) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, src: src, sinks: sinks, prom: prom, log: log}
}

// Run loads bars, computes indicators, simulates, and publishes. Sink
// failures are logged and do not fail the run; the report is already complete
// by then.
func (svc *Service) Run(ctx context.Context) (*Report, error) {
	cfg := svc.cfg
	rep := &Report{RunID: logger.RunID(ctx), Started: time.Now()}
	if rep.RunID == "" {
		rep.RunID = logger.NewRunID()
		ctx = logger.WithRunID(ctx, rep.RunID)
	}
	log := svc.log.With(logger.LogWithRun(ctx)...)

	// ---- Load ----
	bars, err := svc.src.LoadBars(ctx, cfg.Tickers, cfg.From, cfg.To)
	if err != nil {
		return nil, fmt.Errorf("pipeline load: %w", err)
	}
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	rep.Bars = len(bars)
	if svc.prom != nil {
		svc.prom.BarsLoaded.Add(float64(len(bars)))
	}
	log.Info("bars loaded", slog.Int("bars", len(bars)), slog.Int("tickers_requested", len(cfg.Tickers)))

	// ---- Indicators (scatter/gather) ----
	rule := strategy.NewTrendADX(cfg.ADXThreshold)
	engine := indicator.NewEngine(cfg.Indicators, rule)
	rep.PerTicker, err = ComputeAll(ctx, engine, bars, cfg.Workers, svc.prom)
	if err != nil {
		return nil, fmt.Errorf("pipeline indicators: %w", err)
	}
	rep.Records = Merge(rep.PerTicker)
	if svc.prom != nil {
		svc.prom.ObserveRecords(rep.Records)
	}
	log.Info("indicators computed",
		slog.String("strategy", rule.Name()),
		slog.Int("instruments", len(rep.PerTicker)),
		slog.Int("records", len(rep.Records)))

	// ---- Simulate ----
	simStart := time.Now()
	sim := portfolio.New(cfg.Portfolio, log)
	rep.Result = sim.Run(rep.Records)
	rep.Summary = sim.Summary(portfolio.LastPrices(rep.Records))
	rep.Positions = sim.Positions()
	if svc.prom != nil {
		svc.prom.SimulationDur.Observe(time.Since(simStart).Seconds())
		svc.prom.ObserveRun(rep.Result.Trades, rep.Summary)
	}
	log.Info("simulation complete",
		slog.Int("trades", rep.Summary.TotalTrades),
		slog.Float64("final_value", rep.Summary.FinalValue),
		slog.Float64("profit_pct", rep.Summary.ProfitPct),
		slog.Duration("elapsed", time.Since(simStart)))

	// ---- Publish ----
	for _, sink := range svc.sinks {
		if err := sink.PublishRun(ctx, rep.RunID, rep.Result.Trades, rep.Result.History); err != nil {
			log.Warn("publish failed", slog.String("sink", fmt.Sprintf("%T", sink)), slog.Any("err", err))
		}
	}

	rep.Finished = time.Now()
	return rep, nil
}
