package model

import "time"

// DateLayout is the calendar-day format used for bar dates on every boundary
// (CSV, SQLite, Redis, reports).
const DateLayout = "2006-01-02"

// Bar is one instrument's daily OHLC record. Any price may be unknown; a bar
// with an unknown close is a non-trading day for that instrument.
type Bar struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"` // UTC midnight
	Open   Float     `json:"open"`
	High   Float     `json:"high"`
	Low    Float     `json:"low"`
	Close  Float     `json:"close"`
	Volume Float     `json:"volume"`
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Key returns "ticker@date", unique per instrument-day.
func (b *Bar) Key() string {
	return b.Ticker + "@" + b.Date.Format(DateLayout)
}
