// Package sqlite is the on-disk bar cache and run journal.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/metrics"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps one SQLite database. It implements model.BarSource,
// model.BarWriter, and model.RunSink.
type Store struct {
	db   *sql.DB
	prom *metrics.Metrics
}

// Open opens (or creates) the database at path in WAL mode and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite opened", slog.String("path", path))
	return &Store{db: db}, nil
}

// SetMetrics attaches commit-latency instrumentation.
func (s *Store) SetMetrics(m *metrics.Metrics) { s.prom = m }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			ticker TEXT NOT NULL,
			date   TEXT NOT NULL,
			open   REAL,
			high   REAL,
			low    REAL,
			close  REAL,
			volume REAL,
			PRIMARY KEY (ticker, date)
		);

		CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			created_at  TEXT NOT NULL,
			trades      INTEGER NOT NULL,
			days        INTEGER NOT NULL,
			final_value REAL
		);

		CREATE TABLE IF NOT EXISTS trades (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id   TEXT NOT NULL REFERENCES runs(run_id),
			seq      INTEGER NOT NULL,
			date     TEXT NOT NULL,
			ticker   TEXT NOT NULL,
			action   TEXT NOT NULL,
			price    REAL NOT NULL,
			quantity REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, seq);

		CREATE TABLE IF NOT EXISTS snapshots (
			run_id      TEXT NOT NULL REFERENCES runs(run_id),
			date        TEXT NOT NULL,
			total_value REAL NOT NULL,
			PRIMARY KEY (run_id, date)
		);
	`)
	return err
}

// inTx runs fn inside a transaction and records the commit latency.
func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	start := time.Now()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if s.prom != nil {
		s.prom.SQLiteCommitDur.Observe(time.Since(start).Seconds())
	}
	return nil
}
