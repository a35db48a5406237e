package portfolio

import (
	"time"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// Drawdown is the worst peak-to-trough decline of a valuation history.
type Drawdown struct {
	Peak     float64   `json:"peak"`      // highest value seen
	PeakAt   time.Time `json:"peak_at"`   // date of that peak
	MaxPct   float64   `json:"max_pct"`   // worst decline from a running peak, 0-100
	TroughAt time.Time `json:"trough_at"` // date the worst decline bottomed
}

// MaxDrawdown walks history tracking the running peak.
func MaxDrawdown(history []model.Snapshot) Drawdown {
	var dd Drawdown
	for i, snap := range history {
		if i == 0 || snap.TotalValue > dd.Peak {
			dd.Peak = snap.TotalValue
			dd.PeakAt = snap.Date
		}
		if dd.Peak <= 0 {
			continue
		}
		pct := (dd.Peak - snap.TotalValue) / dd.Peak * 100
		if pct > dd.MaxPct {
			dd.MaxPct = pct
			dd.TroughAt = snap.Date
		}
	}
	return dd
}
