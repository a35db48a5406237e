package strategy

import (
	"strconv"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

// TrendADX is a moving-average trend rule with an ADX entry filter.
//
// Buy: fast MA above slow MA and ADX above the threshold.
// Sell: fast MA below slow MA, whatever the trend strength.
// Anything else, including equal averages or unknown inputs, is hold.
type TrendADX struct {
	threshold float64
}

// NewTrendADX creates the rule with the given ADX entry threshold.
func NewTrendADX(adxThreshold float64) *TrendADX {
	return &TrendADX{threshold: adxThreshold}
}

func (s *TrendADX) Name() string {
	return "TREND_ADX_" + strconv.FormatFloat(s.threshold, 'f', -1, 64)
}

func (s *TrendADX) Decide(rec *model.IndicatorRecord) model.Signal {
	fast, fok := rec.FastMavg.Get()
	slow, sok := rec.SlowMavg.Get()
	if !fok || !sok {
		return model.SignalHold
	}

	// Buy is checked first; fast > slow and fast < slow cannot both hold.
	if fast > slow {
		if adx, ok := rec.ADX.Get(); ok && adx > s.threshold {
			return model.SignalBuy
		}
		return model.SignalHold
	}
	if fast < slow {
		return model.SignalSell
	}
	return model.SignalHold
}
