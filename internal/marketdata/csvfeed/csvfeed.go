// Package csvfeed reads and writes daily bars in long CSV format: one row per
// (date, ticker) with columns Date,Ticker,Open,High,Low,Close[,Volume].
package csvfeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/marketdata"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// Header is the column order written by Write.
var Header = []string{"Date", "Ticker", "Open", "High", "Low", "Close", "Volume"}

var dateLayouts = []string{
	model.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
}

// Read parses bars from r. Columns are matched by header name, case
// insensitively; Date, Ticker and Close are required. Empty, "NaN" and "NA"
// cells are unknown values.
func Read(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, marketdata.ErrNoData
		}
		return nil, fmt.Errorf("csvfeed header: %w", err)
	}
	cols := make(map[string]int, len(head))
	for i, h := range head {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, req := range []string{"date", "ticker", "close"} {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("csvfeed header: missing %q column", req)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var bars []model.Bar
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvfeed line %d: %w", line, err)
		}

		var b model.Bar
		if b.Date, err = parseDate(cell(row, "date")); err != nil {
			return nil, fmt.Errorf("csvfeed line %d: %w", line, err)
		}
		if b.Ticker = cell(row, "ticker"); b.Ticker == "" {
			return nil, fmt.Errorf("csvfeed line %d: empty ticker", line)
		}
		for _, f := range []struct {
			name string
			dst  *model.Float
		}{
			{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low},
			{"close", &b.Close}, {"volume", &b.Volume},
		} {
			if *f.dst, err = parseFloat(cell(row, f.name)); err != nil {
				return nil, fmt.Errorf("csvfeed line %d %s: %w", line, f.name, err)
			}
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseFloat(s string) (model.Float, error) {
	switch strings.ToLower(s) {
	case "", "nan", "na", "null":
		return model.None, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.None, err
	}
	return model.Some(v), nil
}

// Write emits bars under Header. Unknown values are written as empty cells.
func Write(w io.Writer, bars []model.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	row := make([]string, len(Header))
	for i := range bars {
		b := &bars[i]
		row[0] = b.Date.Format(model.DateLayout)
		row[1] = b.Ticker
		row[2] = formatFloat(b.Open)
		row[3] = formatFloat(b.High)
		row[4] = formatFloat(b.Low)
		row[5] = formatFloat(b.Close)
		row[6] = formatFloat(b.Volume)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f model.Float) string {
	v, ok := f.Get()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Source is a model.BarSource backed by a CSV file.
type Source struct {
	Path string
}

// LoadBars reads the whole file and filters it to the request.
func (s *Source) LoadBars(ctx context.Context, tickers []string, from, to time.Time) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("csvfeed open: %w", err)
	}
	defer f.Close()

	all, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("csvfeed %s: %w", s.Path, err)
	}
	bars := marketdata.Filter(all, tickers, from, to)
	if len(bars) == 0 {
		return nil, fmt.Errorf("csvfeed %s: %w", s.Path, marketdata.ErrNoData)
	}
	marketdata.SortBars(bars)
	slog.Debug("csv bars loaded", slog.String("path", s.Path), slog.Int("rows", len(all)), slog.Int("kept", len(bars)))
	return bars, nil
}

// WriteBars writes bars to the file, creating parent directories. It
// implements model.BarWriter and replaces any existing content.
func (s *Source) WriteBars(ctx context.Context, bars []model.Bar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("csvfeed mkdir: %w", err)
		}
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("csvfeed create: %w", err)
	}
	if err := Write(f, bars); err != nil {
		f.Close()
		return fmt.Errorf("csvfeed write: %w", err)
	}
	return f.Close()
}
