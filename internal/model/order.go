package model

import (
	"encoding/json"
	"time"
)

// Action is the kind of trade logged by the simulator.
type Action string

const (
	ActionBuy    Action = "buy"
	ActionBuyAdd Action = "buy_add"
	ActionSell   Action = "sell"
)

// Trade is an immutable fill in the trade log.
type Trade struct {
	Date     time.Time `json:"date"`
	Ticker   string    `json:"ticker"`
	Action   Action    `json:"action"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
}

// Notional returns price × quantity.
func (t *Trade) Notional() float64 {
	return t.Price * t.Quantity
}

// JSON returns the JSON-encoded trade.
func (t *Trade) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}
