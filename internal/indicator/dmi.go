package indicator

import (
	"math"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// DMIValue is the directional-movement output for one bar.
type DMIValue struct {
	PlusDM  model.Float
	MinusDM model.Float
	PlusDI  model.Float
	MinusDI model.Float
	DX      model.Float
	ADX     model.Float
}

// DMI computes Wilder's directional movement system.
//
//	move_up   = high - prevHigh
//	move_down = prevLow - low
//	+DM = move_up   if move_up > move_down and move_up > 0, else 0
//	-DM = move_down if move_down > move_up and move_down > 0, else 0
//	±DI = 100 * Wilder(±DM) / ATR
//	DX  = 100 * |+DI - -DI| / |+DI + -DI|   (0 when the sum is 0)
//	ADX = Wilder(DX)
//
// A move with an unknown side compares false, so its DM is 0. DI, and
// therefore DX and ADX, require window known observations before reporting.
type DMI struct {
	prevHigh model.Float
	prevLow  model.Float

	plusAvg  *EWM
	minusAvg *EWM
	adx      *EWM
}

// NewDMI creates a DMI over the given window.
func NewDMI(window int) *DMI {
	return &DMI{
		plusAvg:  NewWilder(window, window),
		minusAvg: NewWilder(window, window),
		adx:      NewWilder(window, window),
	}
}

// Update consumes the next bar with that bar's ATR.
func (d *DMI) Update(b model.Bar, atr model.Float) DMIValue {
	plus, minus := directionalMove(d.prevHigh, d.prevLow, b.High, b.Low)
	d.prevHigh, d.prevLow = b.High, b.Low

	out := DMIValue{
		PlusDM:  model.Some(plus),
		MinusDM: model.Some(minus),
	}
	out.PlusDI = directionalIndex(d.plusAvg.Update(out.PlusDM), atr)
	out.MinusDI = directionalIndex(d.minusAvg.Update(out.MinusDM), atr)
	out.DX = directionalSpread(out.PlusDI, out.MinusDI)
	out.ADX = d.adx.Update(out.DX)
	return out
}

// ADX returns the current ADX value.
func (d *DMI) ADX() model.Float { return d.adx.Value() }

// Reset clears the DMI state for reuse.
func (d *DMI) Reset() {
	d.prevHigh, d.prevLow = model.None, model.None
	d.plusAvg.Reset()
	d.minusAvg.Reset()
	d.adx.Reset()
}

func directionalMove(prevHigh, prevLow, high, low model.Float) (plus, minus float64) {
	ph, phok := prevHigh.Get()
	pl, plok := prevLow.Get()
	h, hok := high.Get()
	l, lok := low.Get()
	if !phok || !plok || !hok || !lok {
		return 0, 0
	}
	up := h - ph
	down := pl - l
	if up > down && up > 0 {
		plus = up
	}
	if down > up && down > 0 {
		minus = down
	}
	return plus, minus
}

// directionalIndex normalizes a smoothed DM by ATR. A zero ATR means no range
// at all, so there is no directional movement either.
func directionalIndex(avgDM, atr model.Float) model.Float {
	dm, ok := avgDM.Get()
	a, aok := atr.Get()
	if !ok || !aok {
		return model.None
	}
	if a == 0 {
		return model.Some(0)
	}
	return model.Some(100 * dm / a)
}

func directionalSpread(plusDI, minusDI model.Float) model.Float {
	p, pok := plusDI.Get()
	m, mok := minusDI.Get()
	if !pok || !mok {
		return model.None
	}
	den := math.Abs(p + m)
	if den == 0 {
		return model.Some(0)
	}
	return model.Some(100 * math.Abs(p-m) / den)
}
