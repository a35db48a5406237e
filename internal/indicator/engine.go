package indicator

import (
	"sort"
	"time"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/strategy"
)

// Config holds the indicator windows.
type Config struct {
	FastWindow int // fast moving average, e.g. 10
	SlowWindow int // slow moving average, e.g. 50
	ATRWindow  int // true-range smoothing, e.g. 14
	ADXWindow  int // directional movement smoothing, e.g. 14
}

// DefaultConfig returns the 10/50 MA, 14-day ATR/ADX setup.
func DefaultConfig() Config {
	return Config{FastWindow: 10, SlowWindow: 50, ATRWindow: 14, ADXWindow: 14}
}

// Engine turns one instrument's bar history into indicator records.
// It holds no per-instrument state itself, so a single Engine may be shared by
// goroutines computing different instruments.
type Engine struct {
	cfg     Config
	decider strategy.Decider
}

// NewEngine creates an indicator engine that labels each record with decider.
func NewEngine(cfg Config, decider strategy.Decider) *Engine {
	return &Engine{cfg: cfg, decider: decider}
}

// Stream is the incremental indicator state for one instrument.
// Not safe for concurrent use.
type Stream struct {
	ticker  string
	decider strategy.Decider

	fast Series
	slow Series
	atr  *ATR
	dmi  *DMI

	last    time.Time
	started bool
}

// NewStream creates fresh indicator state for ticker.
func (e *Engine) NewStream(ticker string) *Stream {
	return &Stream{
		ticker:  ticker,
		decider: e.decider,
		fast:    NewSMA(e.cfg.FastWindow),
		slow:    NewSMA(e.cfg.SlowWindow),
		atr:     NewATR(e.cfg.ATRWindow),
		dmi:     NewDMI(e.cfg.ADXWindow),
	}
}

// Next folds in the next bar. Bars for another ticker, or dated on or before
// the last accepted bar, are rejected with ok=false and leave state untouched.
func (s *Stream) Next(b model.Bar) (rec model.IndicatorRecord, ok bool) {
	if b.Ticker != s.ticker || (s.started && !b.Date.After(s.last)) {
		return model.IndicatorRecord{}, false
	}
	s.started = true
	s.last = b.Date

	rec.Bar = b
	rec.FastMavg = s.fast.Update(b.Close)
	rec.SlowMavg = s.slow.Update(b.Close)
	rec.ATR = s.atr.Update(b)
	rec.TrueRange = s.atr.TrueRange()

	dm := s.dmi.Update(b, rec.ATR)
	rec.PlusDM = dm.PlusDM
	rec.MinusDM = dm.MinusDM
	rec.PlusDI = dm.PlusDI
	rec.MinusDI = dm.MinusDI
	rec.DX = dm.DX
	rec.ADX = dm.ADX

	rec.Signal = model.SignalHold
	if s.decider != nil {
		rec.Signal = s.decider.Decide(&rec)
	}
	return rec, true
}

// Compute processes one instrument's full history. Input order does not
// matter: bars are sorted by date first, and a repeated date keeps its first
// bar. Bars for other tickers are ignored.
func (e *Engine) Compute(ticker string, bars []model.Bar) []model.IndicatorRecord {
	sorted := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Ticker == ticker {
			sorted = append(sorted, b)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	stream := e.NewStream(ticker)
	out := make([]model.IndicatorRecord, 0, len(sorted))
	for _, b := range sorted {
		if rec, ok := stream.Next(b); ok {
			out = append(out, rec)
		}
	}
	return out
}
