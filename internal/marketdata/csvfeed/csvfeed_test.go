package csvfeed

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/marketdata"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

const sample = `Date,Ticker,Close,High,Low,Open,Volume
2024-01-02,AAPL,185.64,188.44,183.89,187.15,82488700
2024-01-02,MSFT,370.87,NaN,,373.86,25258600
2024-01-03 00:00:00,AAPL,184.25,185.88,183.43,184.22,58414500
2024-01-03,MSFT,,,,,
`

func TestRead_HeaderDriven(t *testing.T) {
	bars, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, bars, 4)

	a := bars[0]
	assert.Equal(t, "AAPL", a.Ticker)
	assert.True(t, a.Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 187.15, a.Open.Or(0))
	assert.Equal(t, 185.64, a.Close.Or(0))
	assert.Equal(t, 82488700.0, a.Volume.Or(0))

	m := bars[1]
	assert.False(t, m.High.Valid(), "NaN is unknown")
	assert.False(t, m.Low.Valid(), "empty is unknown")
	assert.Equal(t, model.None, m.Low)
	assert.Equal(t, 370.87, m.Close.Or(0))

	assert.True(t, bars[2].Date.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
	assert.False(t, bars[3].Close.Valid())
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing close column", "Date,Ticker,Open\n2024-01-02,AAPL,1\n"},
		{"bad date", "Date,Ticker,Close\n01/02/2024,AAPL,1\n"},
		{"bad number", "Date,Ticker,Close\n2024-01-02,AAPL,abc\n"},
		{"empty ticker", "Date,Ticker,Close\n2024-01-02,,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}

	_, err := Read(strings.NewReader(""))
	assert.True(t, errors.Is(err, marketdata.ErrNoData))
}

func TestWriteRead_RoundTrip(t *testing.T) {
	in, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "Date,Ticker,Open,High,Low,Close,Volume\n"))

	out, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSource_LoadAndWrite(t *testing.T) {
	ctx := context.Background()
	src := &Source{Path: filepath.Join(t.TempDir(), "nested", "bars.csv")}

	in, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	require.NoError(t, src.WriteBars(ctx, in))

	got, err := src.LoadBars(ctx, []string{"MSFT"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, b := range got {
		assert.Equal(t, "MSFT", b.Ticker)
	}

	_, err = src.LoadBars(ctx, []string{"TSLA"}, time.Time{}, time.Time{})
	assert.True(t, errors.Is(err, marketdata.ErrNoData))
}
