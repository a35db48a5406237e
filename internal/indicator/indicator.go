// Package indicator computes the trend indicators behind the strategy over
// one instrument's daily bar history.
//
// Every series consumes one optional value per bar and produces one optional
// value per bar. Unknown inputs never become zero; each series documents how
// it propagates them.
package indicator

import "github.com/sdkkds2125/FMA-SMA-ATX/internal/model"

// Series is a streaming indicator over one input value per bar.
type Series interface {
	// Name returns the indicator name (e.g., "SMA_10", "WILDER_14").
	Name() string

	// Update feeds the next observation and returns the new value.
	Update(x model.Float) model.Float

	// Value returns the current value, unknown until Ready.
	Value() model.Float

	// Ready returns true when enough observations have been accumulated.
	Ready() bool

	// Reset clears all state for reuse.
	Reset()
}
