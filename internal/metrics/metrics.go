// Package metrics exposes Prometheus instrumentation for backtest runs.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/portfolio"
)

// Metrics holds all Prometheus metrics for a backtest run.
type Metrics struct {
	BarsLoaded      prometheus.Counter
	RecordsComputed prometheus.Counter
	SignalsTotal    *prometheus.CounterVec // labels: signal
	TradesTotal     *prometheus.CounterVec // labels: action

	// Indicator engine
	IndicatorComputeDur prometheus.Histogram // per instrument
	InstrumentsTotal    prometheus.Counter

	// Simulator
	SimulationDur    prometheus.Histogram
	DaysProcessed    prometheus.Counter
	DaysSkipped      prometheus.Counter
	SuppressedOrders *prometheus.CounterVec // labels: reason
	FinalValue       prometheus.Gauge
	ProfitPct        prometheus.Gauge
	MaxDrawdownPct   prometheus.Gauge
	OpenPositions    prometheus.Gauge
	SQLiteCommitDur  prometheus.Histogram

	// Redis publishing
	RedisPublishFailures     prometheus.Counter
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
}

// NewMetrics creates and registers all metrics on reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		BarsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_bars_loaded_total",
			Help: "Daily bars loaded from the data source",
		}),
		RecordsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_indicator_records_total",
			Help: "Indicator records produced by the engine",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_signals_total",
			Help: "Daily signals produced (by signal)",
		}, []string{"signal"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Trades logged by the simulator (by action)",
		}, []string{"action"}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_indicator_compute_duration_seconds",
			Help:    "Indicator computation latency per instrument",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		InstrumentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_instruments_total",
			Help: "Instruments run through the indicator engine",
		}),

		SimulationDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_simulation_duration_seconds",
			Help:    "Portfolio simulation latency per run",
			Buckets: prometheus.DefBuckets,
		}),
		DaysProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_days_processed_total",
			Help: "Trading days valued by the simulator",
		}),
		DaysSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_days_skipped_total",
			Help: "Dates skipped because every close was unknown",
		}),
		SuppressedOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_suppressed_orders_total",
			Help: "Signals that produced no trade (by reason)",
		}, []string{"reason"}),
		FinalValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_final_portfolio_value",
			Help: "Portfolio value at the last date's closes",
		}),
		ProfitPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_profit_pct",
			Help: "Total return over initial cash, percent",
		}),
		MaxDrawdownPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_max_drawdown_pct",
			Help: "Worst peak-to-trough decline of the valuation history, percent",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_open_positions",
			Help: "Positions still open at the end of the run",
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		RedisPublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_redis_publish_failures_total",
			Help: "Failed Redis stream writes while publishing results",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
	}

	reg.MustRegister(
		m.BarsLoaded,
		m.RecordsComputed,
		m.SignalsTotal,
		m.TradesTotal,
		m.IndicatorComputeDur,
		m.InstrumentsTotal,
		m.SimulationDur,
		m.DaysProcessed,
		m.DaysSkipped,
		m.SuppressedOrders,
		m.FinalValue,
		m.ProfitPct,
		m.MaxDrawdownPct,
		m.OpenPositions,
		m.SQLiteCommitDur,
		m.RedisPublishFailures,
		m.RedisCircuitBreakerState,
	)

	return m
}

// ObserveRecords counts computed records and their signals.
func (m *Metrics) ObserveRecords(recs []model.IndicatorRecord) {
	m.RecordsComputed.Add(float64(len(recs)))
	for i := range recs {
		m.SignalsTotal.WithLabelValues(string(recs[i].Signal)).Inc()
	}
}

// ObserveRun records the simulator's outcome.
func (m *Metrics) ObserveRun(trades []model.Trade, sum portfolio.Summary) {
	for i := range trades {
		m.TradesTotal.WithLabelValues(string(trades[i].Action)).Inc()
	}
	m.DaysProcessed.Add(float64(sum.Stats.DaysProcessed))
	m.DaysSkipped.Add(float64(sum.Stats.DaysSkipped))
	m.SuppressedOrders.WithLabelValues("insufficient_funds").Add(float64(sum.Stats.InsufficientFunds))
	m.SuppressedOrders.WithLabelValues("loss_prevention").Add(float64(sum.Stats.LossPreventedSells))
	m.FinalValue.Set(sum.FinalValue)
	m.ProfitPct.Set(sum.ProfitPct)
	m.MaxDrawdownPct.Set(sum.Drawdown.MaxPct)
	m.OpenPositions.Set(float64(sum.OpenPositions))
}

// Push sends everything gathered by g to a Prometheus Pushgateway.
// Batch runs finish before a scraper would see them, hence push.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("metrics push: %w", err)
	}
	return nil
}
