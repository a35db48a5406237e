package portfolio

import (
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// Summary is the end-of-run performance report.
type Summary struct {
	InitialValue  float64  `json:"initial_value"`
	FinalValue    float64  `json:"final_value"`
	Profit        float64  `json:"profit"`
	ProfitPct     float64  `json:"profit_pct"`
	RealizedPnL   float64  `json:"realized_pnl"`
	Cash          float64  `json:"cash"`
	TotalTrades   int      `json:"total_trades"`
	Buys          int      `json:"buys"`
	BuyAdds       int      `json:"buy_adds"`
	Sells         int      `json:"sells"`
	OpenPositions int      `json:"open_positions"`
	Drawdown      Drawdown `json:"drawdown"`
	Stats         Stats    `json:"stats"`
}

// Summary values the portfolio at lastPrices and tallies the trade log.
func (s *Simulator) Summary(lastPrices map[string]float64) Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		InitialValue:  s.cfg.InitialCash,
		FinalValue:    s.book.value(lastPrices),
		RealizedPnL:   s.realized,
		Cash:          s.book.cash,
		TotalTrades:   len(s.trades),
		OpenPositions: len(s.book.positions),
		Drawdown:      MaxDrawdown(s.history),
		Stats:         s.stats,
	}
	sum.Profit = sum.FinalValue - sum.InitialValue
	if sum.InitialValue != 0 {
		sum.ProfitPct = sum.Profit / sum.InitialValue * 100
	}
	for _, t := range s.trades {
		switch t.Action {
		case model.ActionBuy:
			sum.Buys++
		case model.ActionBuyAdd:
			sum.BuyAdds++
		case model.ActionSell:
			sum.Sells++
		}
	}
	return sum
}

// LastPrices returns the known closes on the latest date present in records.
// Tickers without a known close that day are absent from the map.
func LastPrices(records []model.IndicatorRecord) map[string]float64 {
	prices := make(map[string]float64)
	if len(records) == 0 {
		return prices
	}
	last := records[0].Date
	for _, r := range records[1:] {
		if r.Date.After(last) {
			last = r.Date
		}
	}
	for _, r := range records {
		if !r.Date.Equal(last) {
			continue
		}
		if _, seen := prices[r.Ticker]; seen {
			continue
		}
		if px, ok := r.Close.Get(); ok {
			prices[r.Ticker] = px
		}
	}
	return prices
}
