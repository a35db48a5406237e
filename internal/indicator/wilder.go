package indicator

import (
	"strconv"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// EWM is a recursive (unadjusted) exponentially weighted mean:
//
//	s[0] = x[0]
//	s[t] = (1-alpha)*s[t-1] + alpha*x[t]
//
// The first known observation seeds the state. An unknown observation leaves
// the mean where it is but decays the weight of the history, so the next known
// observation counts for more: s = (w*s + alpha*x) / (w + alpha) where w is
// (1-alpha)^(gap+1). The value stays unknown until minObs known observations
// have been seen.
type EWM struct {
	name   string
	alpha  float64
	minObs int

	seeded bool
	mean   float64
	oldWt  float64
	nobs   int
	cur    model.Float
}

// NewEWM creates an EWM with smoothing factor alpha in (0, 1].
func NewEWM(name string, alpha float64, minObs int) *EWM {
	if minObs < 1 {
		minObs = 1
	}
	return &EWM{name: name, alpha: alpha, minObs: minObs, oldWt: 1}
}

// NewWilder creates Wilder's smoothing for a period: alpha = 1/period.
func NewWilder(period, minObs int) *EWM {
	if period < 1 {
		period = 1
	}
	return NewEWM("WILDER_"+strconv.Itoa(period), 1/float64(period), minObs)
}

func (e *EWM) Name() string { return e.name }

func (e *EWM) Update(x model.Float) model.Float {
	v, ok := x.Get()
	switch {
	case !e.seeded && ok:
		e.seeded = true
		e.mean = v
		e.oldWt = 1
		e.nobs = 1
	case e.seeded:
		e.oldWt *= 1 - e.alpha
		if ok {
			e.nobs++
			if e.mean != v {
				e.mean = (e.oldWt*e.mean + e.alpha*v) / (e.oldWt + e.alpha)
			}
			e.oldWt = 1
		}
	}

	if e.seeded && e.nobs >= e.minObs {
		e.cur = model.Some(e.mean)
	} else {
		e.cur = model.None
	}
	return e.cur
}

func (e *EWM) Value() model.Float { return e.cur }
func (e *EWM) Ready() bool        { return e.cur.Valid() }

// Reset clears the state for reuse.
func (e *EWM) Reset() {
	e.seeded = false
	e.mean = 0
	e.oldWt = 1
	e.nobs = 0
	e.cur = model.None
}
