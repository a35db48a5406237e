package model

import (
	"encoding/json"
	"time"
)

// Signal is the per-day trading decision.
type Signal string

const (
	SignalHold Signal = "hold"
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
)

// IndicatorRecord is a bar extended with its derived indicators and signal.
// Values are computed from the instrument's history up to and including Date.
type IndicatorRecord struct {
	Bar

	FastMavg  Float `json:"fast_mavg"`
	SlowMavg  Float `json:"slow_mavg"`
	TrueRange Float `json:"true_range"`
	ATR       Float `json:"atr"`
	PlusDM    Float `json:"plus_dm"`
	MinusDM   Float `json:"minus_dm"`
	PlusDI    Float `json:"plus_di"`
	MinusDI   Float `json:"minus_di"`
	DX        Float `json:"dx"`
	ADX       Float `json:"adx"`

	Signal Signal `json:"signal"`
}

// JSON returns the JSON-encoded record (ignoring errors for hot-path usage).
func (r *IndicatorRecord) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// Snapshot is the portfolio valuation at the close of one processed date.
type Snapshot struct {
	Date       time.Time `json:"date"`
	TotalValue float64   `json:"total_value"`
}
