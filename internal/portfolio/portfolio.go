// Package portfolio replays daily signals against cash and positions.
//
// The Simulator walks dates in ascending order, applies each instrument's
// signal against shared cash, and records a trade log and a daily valuation
// history. Skip conditions (unknown close, insufficient cash, no position to
// sell, loss prevention) are silent no-ops observable only through the
// absence of a trade.
package portfolio

import (
	"sort"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// book holds cash and open positions. Only Holding positions are stored; a
// missing ticker is flat.
type book struct {
	cash      float64
	positions map[string]model.Position
}

func newBook(cash float64) *book {
	return &book{cash: cash, positions: make(map[string]model.Position)}
}

func (b *book) position(ticker string) model.Position {
	if p, ok := b.positions[ticker]; ok {
		return p
	}
	return model.FlatPosition(ticker)
}

// open starts or adds to a holding at price and returns the updated position.
func (b *book) open(ticker string, qty, price float64) model.Position {
	p := b.position(ticker)
	if p.IsHolding() {
		total := p.Quantity + qty
		p.AvgPrice = (p.Quantity*p.AvgPrice + qty*price) / total
		p.Quantity = total
	} else {
		p = model.Position{Ticker: ticker, State: model.Holding, Quantity: qty, AvgPrice: price}
	}
	b.positions[ticker] = p
	return p
}

// close liquidates the holding entirely. The entry is removed, never left at
// zero quantity.
func (b *book) close(ticker string) {
	delete(b.positions, ticker)
}

// tickers returns held tickers in lexicographic order so that valuation sums
// run in a fixed order and are reproducible bit for bit.
func (b *book) tickers() []string {
	out := make([]string, 0, len(b.positions))
	for t := range b.positions {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// value returns cash plus the market value of every holding with a price in
// prices. Holdings without a price contribute nothing.
func (b *book) value(prices map[string]float64) float64 {
	total := b.cash
	for _, t := range b.tickers() {
		if px, ok := prices[t]; ok {
			p := b.positions[t]
			total += p.MarketValue(px)
		}
	}
	return total
}

// snapshot returns every open position in ticker order.
func (b *book) snapshot() []model.Position {
	out := make([]model.Position, 0, len(b.positions))
	for _, t := range b.tickers() {
		out = append(out, b.positions[t])
	}
	return out
}
