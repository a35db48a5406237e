package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// File names written by WriteDir.
const (
	TradesFile     = "trades.csv"
	HistoryFile    = "history.csv"
	IndicatorsFile = "indicators.csv"
)

var indicatorHeader = []string{
	"Date", "Ticker", "Open", "High", "Low", "Close", "Volume",
	"fast_mavg", "slow_mavg", "true_range", "atr", "plus_dm", "minus_dm",
	"plus_di", "minus_di", "dx", "adx", "signal",
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func fo(f model.Float) string {
	if v, ok := f.Get(); ok {
		return ff(v)
	}
	return ""
}

// writeCSV writes header then n rows produced by row.
func writeCSV(w io.Writer, header []string, n int, row func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTrades writes the trade log in order.
func WriteTrades(w io.Writer, trades []model.Trade) error {
	return writeCSV(w, []string{"date", "ticker", "action", "price", "quantity"}, len(trades), func(i int) []string {
		t := &trades[i]
		return []string{t.Date.Format(model.DateLayout), t.Ticker, string(t.Action), ff(t.Price), ff(t.Quantity)}
	})
}

// WriteHistory writes the daily valuation series.
func WriteHistory(w io.Writer, history []model.Snapshot) error {
	return writeCSV(w, []string{"date", "total_value"}, len(history), func(i int) []string {
		return []string{history[i].Date.Format(model.DateLayout), ff(history[i].TotalValue)}
	})
}

// WriteIndicators writes every indicator record, the feed for charting.
// Unknown values are empty cells.
func WriteIndicators(w io.Writer, recs []model.IndicatorRecord) error {
	row := make([]string, len(indicatorHeader))
	return writeCSV(w, indicatorHeader, len(recs), func(i int) []string {
		r := &recs[i]
		row[0] = r.Date.Format(model.DateLayout)
		row[1] = r.Ticker
		row[2] = fo(r.Open)
		row[3] = fo(r.High)
		row[4] = fo(r.Low)
		row[5] = fo(r.Close)
		row[6] = fo(r.Volume)
		row[7] = fo(r.FastMavg)
		row[8] = fo(r.SlowMavg)
		row[9] = fo(r.TrueRange)
		row[10] = fo(r.ATR)
		row[11] = fo(r.PlusDM)
		row[12] = fo(r.MinusDM)
		row[13] = fo(r.PlusDI)
		row[14] = fo(r.MinusDI)
		row[15] = fo(r.DX)
		row[16] = fo(r.ADX)
		row[17] = string(r.Signal)
		return row
	})
}

// WriteDir writes trades, history and indicators CSVs into dir, creating it.
func WriteDir(dir string, trades []model.Trade, history []model.Snapshot, recs []model.IndicatorRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report mkdir: %w", err)
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{TradesFile, func(w io.Writer) error { return WriteTrades(w, trades) }},
		{HistoryFile, func(w io.Writer) error { return WriteHistory(w, history) }},
		{IndicatorsFile, func(w io.Writer) error { return WriteIndicators(w, recs) }},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		fh, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("report create %s: %w", path, err)
		}
		if err := f.write(fh); err != nil {
			fh.Close()
			return fmt.Errorf("report write %s: %w", path, err)
		}
		if err := fh.Close(); err != nil {
			return fmt.Errorf("report close %s: %w", path, err)
		}
	}
	return nil
}
