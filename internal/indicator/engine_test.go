package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/strategy"
)

func risingBars(n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		bars[i] = bar(i, 10+float64(i), 8+float64(i), 9+float64(i))
	}
	return bars
}

func TestEngine_RisingMarketBuysOnceADXWarm(t *testing.T) {
	engine := NewEngine(Config{FastWindow: 2, SlowWindow: 4, ATRWindow: 3, ADXWindow: 3}, strategy.NewTrendADX(25))
	recs := engine.Compute("TEST", risingBars(6))
	require.Len(t, recs, 6)

	// bar 0: fast == slow → hold; bars 1-3: ADX still warming → hold.
	want := []model.Signal{
		model.SignalHold, model.SignalHold, model.SignalHold, model.SignalHold,
		model.SignalBuy, model.SignalBuy,
	}
	for i, r := range recs {
		assert.Equal(t, want[i], r.Signal, "bar %d", i)
	}
	assertClose(t, "fast bar 3", recs[3].FastMavg, 11.5, 1e-12)
	assertClose(t, "slow bar 3", recs[3].SlowMavg, 10.5, 1e-12)
	assertClose(t, "atr", recs[5].ATR, 2, 1e-12)
	assertClose(t, "tr", recs[5].TrueRange, 2, 1e-12)
}

func TestEngine_CloseScenario(t *testing.T) {
	// closes 100, 105, 95 with fast=1, slow=2 and a threshold ADX always clears.
	bars := []model.Bar{bar(0, 101, 99, 100), bar(1, 106, 104, 105), bar(2, 96, 94, 95)}
	engine := NewEngine(Config{FastWindow: 1, SlowWindow: 2, ATRWindow: 1, ADXWindow: 1}, strategy.NewTrendADX(-1))
	recs := engine.Compute("TEST", bars)
	require.Len(t, recs, 3)

	assertClose(t, "slow day 2", recs[1].SlowMavg, 102.5, 1e-12)
	assertClose(t, "slow day 3", recs[2].SlowMavg, 100, 1e-12)
	assert.Equal(t, model.SignalHold, recs[0].Signal)
	assert.Equal(t, model.SignalBuy, recs[1].Signal)
	assert.Equal(t, model.SignalSell, recs[2].Signal)
}

func TestEngine_SortsDedupesAndFiltersTicker(t *testing.T) {
	bars := risingBars(4)
	dup := bars[1]
	dup.Close = model.Some(999)
	other := bars[2]
	other.Ticker = "OTHER"
	in := []model.Bar{bars[3], bars[1], dup, other, bars[0], bars[2]}

	engine := NewEngine(DefaultConfig(), strategy.NewTrendADX(25))
	recs := engine.Compute("TEST", in)
	require.Len(t, recs, 4)
	for i := 1; i < len(recs); i++ {
		assert.True(t, recs[i].Date.After(recs[i-1].Date))
	}
	assertClose(t, "first duplicate wins", recs[1].Close, 10, 0)
}

func TestEngine_NoLookAhead(t *testing.T) {
	engine := NewEngine(Config{FastWindow: 3, SlowWindow: 5, ATRWindow: 4, ADXWindow: 4}, strategy.NewTrendADX(20))
	full := risingBars(20)
	all := engine.Compute("TEST", full)
	prefix := engine.Compute("TEST", full[:9])
	assert.Equal(t, all[:9], prefix)
}

func TestEngine_UnknownCloseHolds(t *testing.T) {
	bars := risingBars(3)
	bars[2].Close = model.None
	engine := NewEngine(Config{FastWindow: 1, SlowWindow: 2, ATRWindow: 2, ADXWindow: 2}, strategy.NewTrendADX(0))
	recs := engine.Compute("TEST", bars)
	require.Len(t, recs, 3)
	// fast(1) over an unknown close is unknown → hold
	assertUnknown(t, "fast", recs[2].FastMavg)
	assert.Equal(t, model.SignalHold, recs[2].Signal)
}

func TestStream_RejectsStaleAndForeignBars(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	s := engine.NewStream("TEST")
	bars := risingBars(2)

	_, ok := s.Next(bars[1])
	require.True(t, ok)
	_, ok = s.Next(bars[0])
	assert.False(t, ok, "older bar must be rejected")
	_, ok = s.Next(bars[1])
	assert.False(t, ok, "same date must be rejected")

	foreign := risingBars(3)[2]
	foreign.Ticker = "OTHER"
	_, ok = s.Next(foreign)
	assert.False(t, ok)
}
