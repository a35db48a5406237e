// Package strategy decides the daily trading signal from a bar's indicators.
//
// Decisions are state-free: each day is judged on its own record, so a buy
// signal repeats every day its condition holds rather than firing only on the
// crossing day.
package strategy

import "github.com/sdkkds2125/FMA-SMA-ATX/internal/model"

// Decider is the interface that all signal rules must implement.
type Decider interface {
	// Name returns the unique name of the rule.
	Name() string

	// Decide returns the signal for one fully computed record.
	Decide(rec *model.IndicatorRecord) model.Signal
}
