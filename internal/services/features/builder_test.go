package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcast/internal/domain/models"
)

var testWatchlist = []string{"NVDA", "AAPL", "MSFT"}

func fptr(v float64) *float64 { return &v }

// fullBars builds n consecutive daily bars with every optional field set,
// starting on a Monday.
func fullBars(ticker string, n int, closeAt func(i int) float64) []models.PriceBar {
	start := time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	for i := 0; i < n; i++ {
		c := closeAt(i)
		bars[i] = models.PriceBar{
			Ticker: ticker,
			Date:   start.AddDate(0, 0, i),
			Open:   c * 0.99,
			High:   fptr(c * 1.02),
			Low:    fptr(c * 0.98),
			Close:  c,
			Volume: 1_000_000 + float64(i)*1000,
			VWAP:   fptr(c * 1.001),
		}
	}
	return bars
}

func firstFiniteIndex(vals []float64) int {
	for i, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

func TestBuildWindowBoundaries(t *testing.T) {
	bars := fullBars("NVDA", 25, func(i int) float64 { return 100 + float64(i) })
	table := Build("NVDA", bars, testWatchlist)
	require.Len(t, table.Rows, 25)

	tests := []struct {
		col        string
		firstValid int
	}{
		{"return_1d", 1},
		{"return_5d", 5},
		{"return_10d", 10},
		{"ma_5", 4},
		{"ma_20", 19},
		{"price_to_ma5", 4},
		{"price_to_ma20", 19},
		{"volatility_5d", 5},
		{"volatility_10d", 10},
		{"volume_ma_20", 19},
		{"volume_ratio", 19},
		{"rsi_14", 14},
	}
	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			vals, ok := table.Column(tt.col)
			require.True(t, ok)
			assert.Equal(t, tt.firstValid, firstFiniteIndex(vals))
			for i := tt.firstValid; i < len(vals); i++ {
				assert.False(t, math.IsNaN(vals[i]), "row %d should be defined", i)
			}
		})
	}
}

func TestBuildHandChecked(t *testing.T) {
	// Alternating +10%/-10% closes give exactly known returns.
	closes := []float64{100, 110, 99, 108.9, 98.01, 107.811}
	bars := fullBars("AAPL", len(closes), func(i int) float64 { return closes[i] })
	table := Build("AAPL", bars, testWatchlist)

	r1 := table.Rows[1]
	assert.InDelta(t, 0.1, r1.Return1D, 1e-12)

	r4 := table.Rows[4]
	wantMA5 := (100 + 110 + 99 + 108.9 + 98.01) / 5
	assert.InDelta(t, wantMA5, r4.MA5, 1e-9)
	assert.InDelta(t, 98.01/wantMA5, r4.PriceToMA5, 1e-9)

	// Sample std of [0.1, -0.1, 0.1, -0.1, 0.1]: mean 0.02, variance 0.012.
	r5 := table.Rows[5]
	assert.InDelta(t, math.Sqrt(0.012), r5.Volatility5D, 1e-9)
}

func TestBuildRSI(t *testing.T) {
	t.Run("all gains resolve to 100", func(t *testing.T) {
		bars := fullBars("NVDA", 20, func(i int) float64 { return 100 + float64(i) })
		table := Build("NVDA", bars, testWatchlist)
		assert.Equal(t, 100.0, table.Rows[14].RSI14)
		assert.Equal(t, 100.0, table.Rows[19].RSI14)
	})

	t.Run("all losses resolve to 0", func(t *testing.T) {
		bars := fullBars("NVDA", 20, func(i int) float64 { return 100 - float64(i) })
		table := Build("NVDA", bars, testWatchlist)
		assert.Equal(t, 0.0, table.Rows[14].RSI14)
	})

	t.Run("flat window stays undefined", func(t *testing.T) {
		bars := fullBars("NVDA", 20, func(i int) float64 { return 100 })
		table := Build("NVDA", bars, testWatchlist)
		assert.True(t, math.IsNaN(table.Rows[14].RSI14))
	})

	t.Run("balanced gains and losses give 50", func(t *testing.T) {
		// Deltas alternate +1/-1: seven gains of 1 and seven losses of 1
		// in the first full window.
		bars := fullBars("NVDA", 15, func(i int) float64 {
			if i%2 == 0 {
				return 100
			}
			return 101
		})
		table := Build("NVDA", bars, testWatchlist)
		assert.InDelta(t, 50.0, table.Rows[14].RSI14, 1e-9)
	})
}

func TestBuildDailyRange(t *testing.T) {
	bars := fullBars("MSFT", 3, func(i int) float64 { return 200 })
	table := Build("MSFT", bars, testWatchlist)
	want := (200*1.02 - 200*0.98) / (200 * 0.99)
	assert.InDelta(t, want, table.Rows[2].DailyRange, 1e-12)

	t.Run("missing high", func(t *testing.T) {
		bars := fullBars("MSFT", 3, func(i int) float64 { return 200 })
		bars[2].High = nil
		table := Build("MSFT", bars, testWatchlist)
		assert.True(t, math.IsNaN(table.Rows[2].DailyRange))
	})

	t.Run("zero open", func(t *testing.T) {
		bars := fullBars("MSFT", 3, func(i int) float64 { return 200 })
		bars[2].Open = 0
		table := Build("MSFT", bars, testWatchlist)
		assert.True(t, math.IsNaN(table.Rows[2].DailyRange))
	})
}

func TestBuildCloseToVWAP(t *testing.T) {
	bars := fullBars("AAPL", 2, func(i int) float64 { return 150 })
	table := Build("AAPL", bars, testWatchlist)
	assert.InDelta(t, 150/(150*1.001), table.Rows[1].CloseToVWAP, 1e-12)

	bars[1].VWAP = nil
	table = Build("AAPL", bars, testWatchlist)
	assert.True(t, math.IsNaN(table.Rows[1].CloseToVWAP))
}

func TestBuildZeroPrevClose(t *testing.T) {
	bars := fullBars("NVDA", 3, func(i int) float64 { return float64(i) * 5 })
	table := Build("NVDA", bars, testWatchlist)
	// Previous close is 0, so the return is undefined rather than infinite.
	assert.True(t, math.IsNaN(table.Rows[1].Return1D))
	assert.False(t, math.IsNaN(table.Rows[2].Return1D))
}

func TestBuildDayOfWeek(t *testing.T) {
	bars := fullBars("NVDA", 5, func(i int) float64 { return 100 })
	table := Build("NVDA", bars, testWatchlist)
	assert.Equal(t, 0.0, table.Rows[0].DayOfWeek) // Monday
	assert.Equal(t, 4.0, table.Rows[4].DayOfWeek) // Friday
}

func TestBuildEmptySeries(t *testing.T) {
	table := Build("NVDA", nil, testWatchlist)
	require.NotNil(t, table)
	assert.Empty(t, table.Rows)
	_, ok := table.Latest()
	assert.False(t, ok)
}
