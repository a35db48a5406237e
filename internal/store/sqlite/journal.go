package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// RunRecord is a row from the runs table.
type RunRecord struct {
	RunID      string      `json:"run_id"`
	CreatedAt  time.Time   `json:"created_at"`
	Trades     int         `json:"trades"`
	Days       int         `json:"days"`
	FinalValue model.Float `json:"final_value"`
}

// PublishRun journals a finished backtest: one runs row, the ordered trade
// log, and the daily valuation history.
func (s *Store) PublishRun(ctx context.Context, runID string, trades []model.Trade, history []model.Snapshot) error {
	final := model.None
	if n := len(history); n > 0 {
		final = model.Some(history[n-1].TotalValue)
	}

	err := s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (run_id, created_at, trades, days, final_value) VALUES (?, ?, ?, ?, ?)`,
			runID, time.Now().UTC().Format(time.RFC3339), len(trades), len(history), final,
		); err != nil {
			return err
		}

		tstmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trades (run_id, seq, date, ticker, action, price, quantity)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer tstmt.Close()
		for i, t := range trades {
			if _, err := tstmt.ExecContext(ctx, runID, i, t.Date.Format(model.DateLayout),
				t.Ticker, string(t.Action), t.Price, t.Quantity); err != nil {
				return err
			}
		}

		sstmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshots (run_id, date, total_value) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer sstmt.Close()
		for _, h := range history {
			if _, err := sstmt.ExecContext(ctx, runID, h.Date.Format(model.DateLayout), h.TotalValue); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlite journal run %s: %w", runID, err)
	}
	slog.Info("run journaled", slog.String("run_id", runID), slog.Int("trades", len(trades)), slog.Int("days", len(history)))
	return nil
}

// RunTrades returns the trade log of runID in its original order.
func (s *Store) RunTrades(ctx context.Context, runID string) ([]model.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, ticker, action, price, quantity FROM trades
		WHERE run_id = ? ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var out []model.Trade
	for rows.Next() {
		var (
			t      model.Trade
			date   string
			action string
		)
		if err := rows.Scan(&date, &t.Ticker, &action, &t.Price, &t.Quantity); err != nil {
			return nil, err
		}
		if t.Date, err = time.Parse(model.DateLayout, date); err != nil {
			return nil, err
		}
		t.Action = model.Action(action)
		out = append(out, t)
	}
	return out, rows.Err()
}

// RunHistory returns the valuation history of runID ordered by date.
func (s *Store) RunHistory(ctx context.Context, runID string) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, total_value FROM snapshots WHERE run_id = ? ORDER BY date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		var (
			h    model.Snapshot
			date string
		)
		if err := rows.Scan(&date, &h.TotalValue); err != nil {
			return nil, err
		}
		if h.Date, err = time.Parse(model.DateLayout, date); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Runs lists journaled runs, newest first, capped at limit (0 = all).
func (s *Store) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT run_id, created_at, trades, days, final_value FROM runs ORDER BY created_at DESC, run_id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r       RunRecord
			created string
		)
		if err := rows.Scan(&r.RunID, &created, &r.Trades, &r.Days, &r.FinalValue); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("sqlite run %s created_at: %w", r.RunID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
