package pipeline

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/indicator"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/metrics"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/portfolio"
)

// GroupByTicker splits bars into per-instrument slices, preserving input order
// within each ticker.
func GroupByTicker(bars []model.Bar) map[string][]model.Bar {
	out := make(map[string][]model.Bar)
	for _, b := range bars {
		out[b.Ticker] = append(out[b.Ticker], b)
	}
	return out
}

// ComputeAll runs the indicator engine over every instrument concurrently,
// with at most workers instruments in flight. Instruments share nothing, so
// the result is identical to a sequential run. prom may be nil.
func ComputeAll(ctx context.Context, engine *indicator.Engine, bars []model.Bar, workers int, prom *metrics.Metrics) (map[string][]model.IndicatorRecord, error) {
	groups := GroupByTicker(bars)
	tickers := make([]string, 0, len(groups))
	for t := range groups {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	// Each goroutine writes only its own slot.
	results := make([][]model.IndicatorRecord, len(tickers))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, ticker := range tickers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			results[i] = engine.Compute(ticker, groups[ticker])
			if prom != nil {
				prom.IndicatorComputeDur.Observe(time.Since(start).Seconds())
				prom.InstrumentsTotal.Inc()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]model.IndicatorRecord, len(tickers))
	for i, ticker := range tickers {
		out[ticker] = results[i]
	}
	return out, nil
}

// Merge flattens per-instrument records into one stream ordered by date, then
// ticker, ready for the simulator.
func Merge(perTicker map[string][]model.IndicatorRecord) []model.IndicatorRecord {
	n := 0
	for _, recs := range perTicker {
		n += len(recs)
	}
	merged := make([]model.IndicatorRecord, 0, n)
	for _, recs := range perTicker {
		merged = append(merged, recs...)
	}
	portfolio.SortRecords(merged)
	return merged
}
