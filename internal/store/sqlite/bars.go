package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// WriteBars upserts bars in a single transaction. Unknown prices are stored
// as NULL.
func (s *Store) WriteBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	err := s.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO bars (ticker, date, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, b := range bars {
			if _, err := stmt.ExecContext(ctx, b.Ticker, b.Date.Format(model.DateLayout),
				b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlite write bars: %w", err)
	}
	slog.Debug("sqlite bars committed", slog.Int("bars", len(bars)))
	return nil
}

// LoadBars reads bars for tickers between from and to inclusive, ordered by
// date then ticker. Zero from/to leave that side of the range open.
func (s *Store) LoadBars(ctx context.Context, tickers []string, from, to time.Time) ([]model.Bar, error) {
	var (
		where []string
		args  []any
	)
	if len(tickers) > 0 {
		where = append(where, "ticker IN (?"+strings.Repeat(",?", len(tickers)-1)+")")
		for _, t := range tickers {
			args = append(args, t)
		}
	}
	if !from.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, from.Format(model.DateLayout))
	}
	if !to.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, to.Format(model.DateLayout))
	}

	query := `SELECT ticker, date, open, high, low, close, volume FROM bars`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, ticker ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var (
			b    model.Bar
			date string
		)
		if err := rows.Scan(&b.Ticker, &date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		if b.Date, err = time.Parse(model.DateLayout, date); err != nil {
			return nil, fmt.Errorf("sqlite bad date %q: %w", date, err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LastDate returns the most recent stored date for ticker, or the zero time
// when nothing is cached.
func (s *Store) LastDate(ctx context.Context, ticker string) (time.Time, error) {
	var date sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(date) FROM bars WHERE ticker = ?`, ticker).Scan(&date)
	if err != nil {
		return time.Time{}, err
	}
	if !date.Valid {
		return time.Time{}, nil
	}
	return time.Parse(model.DateLayout, date.String)
}

// Tickers lists every cached ticker in ascending order.
func (s *Store) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM bars ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ResumeFrom returns the earliest date an incremental download must start at
// so that every ticker is brought up to date: the day after its last cached
// bar, or from when it has none. The result is never before from.
func (s *Store) ResumeFrom(ctx context.Context, tickers []string, from time.Time) (time.Time, error) {
	var start time.Time
	for i, t := range tickers {
		last, err := s.LastDate(ctx, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("sqlite last date %s: %w", t, err)
		}
		next := from
		if !last.IsZero() && !last.Before(from) {
			next = last.AddDate(0, 0, 1)
		}
		if i == 0 || next.Before(start) {
			start = next
		}
	}
	if len(tickers) == 0 {
		return from, nil
	}
	return start, nil
}
