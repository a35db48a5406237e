package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/store/sqlite"
)

var d0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func openTemp(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "bt.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func bar(ticker string, day int, px model.Float) model.Bar {
	return model.Bar{
		Ticker: ticker,
		Date:   d0.AddDate(0, 0, day),
		Open:   px,
		High:   px,
		Low:    px,
		Close:  px,
		Volume: model.Some(1000),
	}
}

func TestStore_WriteAndLoadBars(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()

	bars := []model.Bar{
		bar("MSFT", 1, model.Some(400)),
		bar("AAPL", 0, model.Some(180)),
		bar("AAPL", 1, model.None),
		bar("MSFT", 0, model.Some(399.5)),
	}
	require.NoError(t, st.WriteBars(ctx, bars))

	got, err := st.LoadBars(ctx, nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 4)

	// Ordered by date then ticker.
	assert.Equal(t, "AAPL", got[0].Ticker)
	assert.Equal(t, "MSFT", got[1].Ticker)
	assert.Equal(t, "AAPL", got[2].Ticker)
	assert.True(t, got[0].Date.Equal(d0))

	assert.False(t, got[2].Close.Valid(), "unknown close should round-trip as NULL")
	assert.Equal(t, 399.5, got[1].Close.Or(-1))
}

func TestStore_LoadBarsFilters(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()

	var bars []model.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, bar("AAPL", i, model.Some(float64(100+i))))
		bars = append(bars, bar("NVDA", i, model.Some(float64(500+i))))
	}
	require.NoError(t, st.WriteBars(ctx, bars))

	got, err := st.LoadBars(ctx, []string{"NVDA"}, d0.AddDate(0, 0, 1), d0.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, b := range got {
		assert.Equal(t, "NVDA", b.Ticker)
	}
	assert.Equal(t, 501.0, got[0].Close.Or(0))
	assert.Equal(t, 503.0, got[2].Close.Or(0))
}

func TestStore_WriteBarsUpserts(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()

	require.NoError(t, st.WriteBars(ctx, []model.Bar{bar("AAPL", 0, model.Some(1))}))
	require.NoError(t, st.WriteBars(ctx, []model.Bar{bar("AAPL", 0, model.Some(2))}))

	got, err := st.LoadBars(ctx, []string{"AAPL"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Close.Or(0))
}

func TestStore_LastDateAndTickers(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()

	last, err := st.LastDate(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	require.NoError(t, st.WriteBars(ctx, []model.Bar{
		bar("AAPL", 0, model.Some(1)),
		bar("AAPL", 4, model.Some(1)),
		bar("AMZN", 2, model.Some(1)),
	}))

	last, err = st.LastDate(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, last.Equal(d0.AddDate(0, 0, 4)))

	tickers, err := st.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "AMZN"}, tickers)
}

func TestStore_ResumeFrom(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	require.NoError(t, st.WriteBars(ctx, []model.Bar{
		bar("AAPL", 0, model.Some(1)),
		bar("AAPL", 4, model.Some(1)),
		bar("AMZN", 2, model.Some(1)),
	}))

	cases := []struct {
		name    string
		tickers []string
		from    time.Time
		want    time.Time
	}{
		{"single", []string{"AAPL"}, d0, d0.AddDate(0, 0, 5)},
		{"earliest wins", []string{"AAPL", "AMZN"}, d0, d0.AddDate(0, 0, 3)},
		{"uncached ticker", []string{"AAPL", "MSFT"}, d0, d0},
		{"cache older than from", []string{"AAPL"}, d0.AddDate(0, 0, 10), d0.AddDate(0, 0, 10)},
		{"no tickers", nil, d0, d0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := st.ResumeFrom(ctx, tc.tickers, tc.from)
			require.NoError(t, err)
			assert.True(t, got.Equal(tc.want), "got %s want %s", got, tc.want)
		})
	}
}

func TestStore_PublishRunRoundTrip(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()

	trades := []model.Trade{
		{Date: d0, Ticker: "AAPL", Action: model.ActionBuy, Price: 100, Quantity: 10},
		{Date: d0.AddDate(0, 0, 2), Ticker: "AAPL", Action: model.ActionSell, Price: 110, Quantity: 10},
	}
	history := []model.Snapshot{
		{Date: d0, TotalValue: 100000},
		{Date: d0.AddDate(0, 0, 1), TotalValue: 100050},
		{Date: d0.AddDate(0, 0, 2), TotalValue: 100100},
	}
	require.NoError(t, st.PublishRun(ctx, "run-1", trades, history))

	gotTrades, err := st.RunTrades(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotTrades, 2)
	assert.Equal(t, model.ActionBuy, gotTrades[0].Action)
	assert.Equal(t, model.ActionSell, gotTrades[1].Action)
	assert.Equal(t, 110.0, gotTrades[1].Price)

	gotHist, err := st.RunHistory(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotHist, 3)
	assert.Equal(t, 100100.0, gotHist[2].TotalValue)

	runs, err := st.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, 2, runs[0].Trades)
	assert.Equal(t, 3, runs[0].Days)
	assert.Equal(t, 100100.0, runs[0].FinalValue.Or(0))
	assert.WithinDuration(t, time.Now(), runs[0].CreatedAt, time.Minute)
}

func TestStore_RunsRejectsCorruptTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bt.db")
	st, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec(`INSERT INTO runs (run_id, created_at, trades, days, final_value) VALUES ('bad', 'yesterday', 0, 0, NULL)`)
	require.NoError(t, err)

	_, err = st.Runs(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestStore_PublishRunDuplicateIDFails(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()

	require.NoError(t, st.PublishRun(ctx, "dup", nil, nil))
	err := st.PublishRun(ctx, "dup", nil, nil)
	assert.Error(t, err)

	runs, err := st.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].FinalValue.Valid(), "empty history has no final value")
}
