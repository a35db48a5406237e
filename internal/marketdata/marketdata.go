// Package marketdata holds the daily bar sources: CSV files and the Yahoo
// Finance chart API. The SQLite cache lives in store/sqlite.
package marketdata

import (
	"errors"
	"sort"
	"time"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// ErrNoData is returned when a source has nothing for the requested range.
var ErrNoData = errors.New("marketdata: no data")

// Filter keeps bars whose ticker is in tickers (all when empty) and whose date
// falls in [from, to]. Zero from/to leave that side open.
func Filter(bars []model.Bar, tickers []string, from, to time.Time) []model.Bar {
	var want map[string]bool
	if len(tickers) > 0 {
		want = make(map[string]bool, len(tickers))
		for _, t := range tickers {
			want[t] = true
		}
	}
	out := bars[:0:0]
	for _, b := range bars {
		if want != nil && !want[b.Ticker] {
			continue
		}
		if !from.IsZero() && b.Date.Before(from) {
			continue
		}
		if !to.IsZero() && b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// SortBars orders bars by date, then ticker.
func SortBars(bars []model.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		if !bars[i].Date.Equal(bars[j].Date) {
			return bars[i].Date.Before(bars[j].Date)
		}
		return bars[i].Ticker < bars[j].Ticker
	})
}
