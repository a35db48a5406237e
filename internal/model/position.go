package model

// PositionState tags a Position as flat or holding.
type PositionState int

const (
	Flat PositionState = iota
	Holding
)

func (s PositionState) String() string {
	if s == Holding {
		return "holding"
	}
	return "flat"
}

// Position is one instrument's holding. Quantity and AvgPrice are only
// meaningful when State is Holding, in which case Quantity > 0.
type Position struct {
	Ticker   string        `json:"ticker"`
	State    PositionState `json:"state"`
	Quantity float64       `json:"quantity"`
	AvgPrice float64       `json:"avg_price"`
}

// FlatPosition returns the flat variant for ticker.
func FlatPosition(ticker string) Position {
	return Position{Ticker: ticker, State: Flat}
}

// IsHolding reports whether the position is open.
func (p Position) IsHolding() bool { return p.State == Holding }

// MarketValue returns Quantity × price for an open position, 0 when flat.
func (p Position) MarketValue(price float64) float64 {
	if p.State != Holding {
		return 0
	}
	return p.Quantity * price
}
