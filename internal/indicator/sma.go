package indicator

import (
	"strconv"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// SMA is a trailing arithmetic mean over the last period bars.
//
// During warm-up the mean is taken over however many bars exist, so the first
// bar already has a value. Unknown observations occupy a slot in the window but
// are excluded from the mean; the value is unknown only when every slot in the
// window is unknown.
type SMA struct {
	period int
	buf    []model.Float // preallocated circular buffer
	idx    int           // current write position
	seen   int           // bars received, capped at period
	known  int           // known observations currently in the window
	sum    float64
	cur    model.Float
}

// NewSMA creates a new SMA with the given period. Periods below 1 are treated as 1.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		buf:    make([]model.Float, period),
	}
}

func (s *SMA) Name() string { return "SMA_" + strconv.Itoa(s.period) }

func (s *SMA) Update(x model.Float) model.Float {
	if s.seen == s.period {
		// Evict the slot being overwritten
		if old, ok := s.buf[s.idx].Get(); ok {
			s.sum -= old
			s.known--
		}
	} else {
		s.seen++
	}

	s.buf[s.idx] = x
	if v, ok := x.Get(); ok {
		s.sum += v
		s.known++
	}
	s.idx = (s.idx + 1) % s.period

	if s.known == 0 {
		// Reset the running sum so drift doesn't accumulate across gaps
		s.sum = 0
		s.cur = model.None
	} else {
		s.cur = model.Some(s.sum / float64(s.known))
	}
	return s.cur
}

func (s *SMA) Value() model.Float { return s.cur }
func (s *SMA) Ready() bool        { return s.cur.Valid() }

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.seen = 0
	s.known = 0
	s.sum = 0
	s.cur = model.None
	for i := range s.buf {
		s.buf[i] = model.None
	}
}
