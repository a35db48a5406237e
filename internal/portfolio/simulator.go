package portfolio

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// ErrOutOfOrder is returned by ProcessDay for a date on or before the last
// processed date.
var ErrOutOfOrder = errors.New("portfolio: date not after last processed date")

// Config fixes the simulator's sizing and policy knobs for a whole run.
type Config struct {
	InitialCash    float64 `json:"initial_cash"`
	TradeSize      float64 `json:"trade_size"`      // currency spent per buy
	LossPrevention bool    `json:"loss_prevention"` // never sell below average cost
	Pyramiding     bool    `json:"pyramiding"`      // add to open positions on repeat buys
}

// DefaultConfig returns 100k starting cash with 1k per trade.
func DefaultConfig() Config {
	return Config{InitialCash: 100000, TradeSize: 1000}
}

// Stats counts the silent skip conditions hit during a run.
type Stats struct {
	DaysProcessed      int `json:"days_processed"`
	DaysSkipped        int `json:"days_skipped"`         // every close unknown
	InsufficientFunds  int `json:"insufficient_funds"`   // buy signal with cash < trade size
	LossPreventedSells int `json:"loss_prevented_sells"` // sell held back below cost
	IgnoredRecords     int `json:"ignored_records"`      // duplicates or misdated records
}

// Result is the output of a full run.
type Result struct {
	Trades  []model.Trade    `json:"trades"`
	History []model.Snapshot `json:"history"`
}

// Simulator replays indicator records day by day.
// All mutation happens under mu, so reads from other goroutines are safe while
// a run is in progress.
type Simulator struct {
	mu  sync.RWMutex
	cfg Config
	log *slog.Logger

	book     *book
	trades   []model.Trade
	history  []model.Snapshot
	realized float64
	stats    Stats

	last    time.Time
	started bool
}

// New creates a Simulator. A nil logger uses slog.Default().
func New(cfg Config, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		cfg:    cfg,
		log:    logger.With(slog.String("component", "simulator")),
		book:   newBook(cfg.InitialCash),
		trades: make([]model.Trade, 0, 256),
	}
}

// Run sorts records by (date, ticker), groups them by date and processes each
// date in order. It never fails: misordered input is sorted rather than
// rejected.
func (s *Simulator) Run(records []model.IndicatorRecord) Result {
	sorted := make([]model.IndicatorRecord, len(records))
	copy(sorted, records)
	SortRecords(sorted)

	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sorted[end].Date.Equal(sorted[start].Date) {
			end++
		}
		if err := s.ProcessDay(sorted[start].Date, sorted[start:end]); err != nil {
			// Only reachable when ProcessDay was also driven directly.
			s.log.Warn("skipping date", slog.String("date", sorted[start].Date.Format(model.DateLayout)), slog.Any("err", err))
		}
		start = end
	}

	return Result{Trades: s.Trades(), History: s.History()}
}

// ProcessDay applies one date's records. Dates must be strictly increasing
// across calls. Records dated otherwise, and repeats of a ticker, are ignored.
// Tickers are evaluated in lexicographic order, which decides who gets the
// cash when several buys compete for it.
func (s *Simulator) ProcessDay(date time.Time, records []model.IndicatorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started && !date.After(s.last) {
		return fmt.Errorf("%w: %s <= %s", ErrOutOfOrder, date.Format(model.DateLayout), s.last.Format(model.DateLayout))
	}
	s.started = true
	s.last = date

	day := s.dayRecords(date, records)

	closes := make(map[string]float64, len(day))
	for i := range day {
		if px, ok := day[i].Close.Get(); ok {
			closes[day[i].Ticker] = px
		}
	}
	if len(closes) == 0 {
		s.stats.DaysSkipped++
		return nil
	}

	for i := range day {
		rec := &day[i]
		px, ok := closes[rec.Ticker]
		if !ok {
			continue
		}
		switch rec.Signal {
		case model.SignalBuy:
			s.buy(date, rec.Ticker, px)
		case model.SignalSell:
			s.sell(date, rec.Ticker, px)
		}
	}

	s.history = append(s.history, model.Snapshot{Date: date, TotalValue: s.book.value(closes)})
	s.stats.DaysProcessed++
	return nil
}

// dayRecords keeps the first record per ticker dated on date, in ticker order.
func (s *Simulator) dayRecords(date time.Time, records []model.IndicatorRecord) []model.IndicatorRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.IndicatorRecord, 0, len(records))
	for _, r := range records {
		if !r.Date.Equal(date) {
			s.stats.IgnoredRecords++
			continue
		}
		if _, dup := seen[r.Ticker]; dup {
			s.stats.IgnoredRecords++
			continue
		}
		seen[r.Ticker] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func (s *Simulator) buy(date time.Time, ticker string, price float64) {
	if price <= 0 || s.cfg.TradeSize <= 0 {
		return
	}
	if s.book.cash < s.cfg.TradeSize {
		s.stats.InsufficientFunds++
		return
	}

	action := model.ActionBuy
	if s.book.position(ticker).IsHolding() {
		if !s.cfg.Pyramiding {
			return
		}
		action = model.ActionBuyAdd
	}

	qty := s.cfg.TradeSize / price
	pos := s.book.open(ticker, qty, price)
	s.book.cash -= s.cfg.TradeSize
	s.record(model.Trade{Date: date, Ticker: ticker, Action: action, Price: price, Quantity: qty})

	s.log.Debug("buy",
		slog.String("ticker", ticker),
		slog.String("action", string(action)),
		slog.Float64("price", price),
		slog.Float64("qty", qty),
		slog.Float64("avg_price", pos.AvgPrice),
		slog.Float64("cash", s.book.cash))
}

func (s *Simulator) sell(date time.Time, ticker string, price float64) {
	pos := s.book.position(ticker)
	if !pos.IsHolding() {
		return
	}
	if s.cfg.LossPrevention && price < pos.AvgPrice {
		s.stats.LossPreventedSells++
		return
	}

	s.book.cash += price * pos.Quantity
	s.realized += (price - pos.AvgPrice) * pos.Quantity
	s.book.close(ticker)
	s.record(model.Trade{Date: date, Ticker: ticker, Action: model.ActionSell, Price: price, Quantity: pos.Quantity})

	s.log.Debug("sell",
		slog.String("ticker", ticker),
		slog.Float64("price", price),
		slog.Float64("qty", pos.Quantity),
		slog.Float64("cash", s.book.cash))
}

func (s *Simulator) record(t model.Trade) {
	s.trades = append(s.trades, t)
}

// Value returns cash plus holdings marked at prices. Holdings missing from
// prices count as zero. It does not change state.
func (s *Simulator) Value(prices map[string]float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.value(prices)
}

// Cash returns the current cash balance.
func (s *Simulator) Cash() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.cash
}

// Position returns the position for ticker, flat if none is open.
func (s *Simulator) Position(ticker string) model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.position(ticker)
}

// Positions returns every open position in ticker order.
func (s *Simulator) Positions() []model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.snapshot()
}

// Trades returns a copy of the trade log.
func (s *Simulator) Trades() []model.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.Trade, len(s.trades))
	copy(cp, s.trades)
	return cp
}

// History returns a copy of the valuation history.
func (s *Simulator) History() []model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.Snapshot, len(s.history))
	copy(cp, s.history)
	return cp
}

// Stats returns the skip counters.
func (s *Simulator) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// SortRecords orders records by date, then ticker. The sort is stable so that
// the first of any duplicate (date, ticker) pair stays first.
func SortRecords(recs []model.IndicatorRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.Before(recs[j].Date)
		}
		return recs[i].Ticker < recs[j].Ticker
	})
}
