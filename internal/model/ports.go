package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the backtest from concrete bar sources and
// result sinks (CSV, SQLite, Yahoo, Redis).

// BarSource yields daily bars for a set of tickers over an inclusive date range.
type BarSource interface {
	// LoadBars returns bars for the given tickers between from and to.
	// An empty tickers slice means every ticker the source knows about.
	LoadBars(ctx context.Context, tickers []string, from, to time.Time) ([]Bar, error)
}

// BarWriter persists raw bars.
type BarWriter interface {
	WriteBars(ctx context.Context, bars []Bar) error
}

// RunSink receives a finished backtest.
type RunSink interface {
	// PublishRun records the trade log and valuation history under runID.
	PublishRun(ctx context.Context, runID string, trades []Trade, history []Snapshot) error
}
