package indicator

import (
	"math"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// TrueRange tracks the previous close to compute
// max(high-low, |high-prevClose|, |low-prevClose|).
//
// Components with an unknown input are dropped from the max; with no previous
// close the range degenerates to high-low. The result is unknown only when no
// component is known.
type TrueRange struct {
	prevClose model.Float
}

// Update consumes the next bar and returns its true range.
func (t *TrueRange) Update(b model.Bar) model.Float {
	defer func() { t.prevClose = b.Close }()

	out := model.None
	take := func(v float64) {
		if cur, ok := out.Get(); !ok || v > cur {
			out = model.Some(v)
		}
	}

	h, hok := b.High.Get()
	l, lok := b.Low.Get()
	pc, pcok := t.prevClose.Get()
	if hok && lok {
		take(h - l)
	}
	if hok && pcok {
		take(math.Abs(h - pc))
	}
	if lok && pcok {
		take(math.Abs(l - pc))
	}
	return out
}

// Reset forgets the previous close.
func (t *TrueRange) Reset() { t.prevClose = model.None }

// ATR is Wilder's smoothing of the true range, defined from the first bar.
type ATR struct {
	tr     TrueRange
	smooth *EWM
	lastTR model.Float
}

// NewATR creates an ATR over the given window.
func NewATR(window int) *ATR {
	return &ATR{smooth: NewWilder(window, 1)}
}

// Update consumes the next bar and returns the ATR.
func (a *ATR) Update(b model.Bar) model.Float {
	a.lastTR = a.tr.Update(b)
	return a.smooth.Update(a.lastTR)
}

// TrueRange returns the true range of the last bar.
func (a *ATR) TrueRange() model.Float { return a.lastTR }

func (a *ATR) Value() model.Float { return a.smooth.Value() }

// Reset clears the ATR state for reuse.
func (a *ATR) Reset() {
	a.tr.Reset()
	a.smooth.Reset()
	a.lastTR = model.None
}
