package forecast

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"stockcast/internal/domain/models"
)

// tableWith builds n rows for one ticker and lets the caller fill columns.
func tableWith(n int, fill func(i int, r *models.FeatureRow)) *models.FeatureTable {
	rows := make([]models.FeatureRow, n)
	for i := range rows {
		rows[i].Ticker = "NVDA"
		if fill != nil {
			fill(i, &rows[i])
		}
	}
	return &models.FeatureTable{Ticker: "NVDA", Watchlist: []string{"NVDA"}, Rows: rows}
}

func TestExplainFallbacks(t *testing.T) {
	e := NewStatExplainer()
	ctx := context.Background()
	schema := models.FeatureSchema{"rsi_14"}

	t.Run("no importances", func(t *testing.T) {
		table := tableWith(20, func(i int, r *models.FeatureRow) { r.RSI14 = float64(40 + i) })
		assert.Equal(t, FallbackWhy, e.Explain(ctx, schema, nil, table))
	})

	t.Run("short history", func(t *testing.T) {
		table := tableWith(9, func(i int, r *models.FeatureRow) { r.RSI14 = float64(40 + i) })
		assert.Equal(t, FallbackWhy, e.Explain(ctx, schema, []float64{1}, table))
	})

	t.Run("no scoreable column", func(t *testing.T) {
		// Constant columns have zero spread and are skipped.
		table := tableWith(20, func(i int, r *models.FeatureRow) { r.RSI14 = 50 })
		assert.Equal(t, FallbackWhy, e.Explain(ctx, schema, []float64{1}, table))
	})
}

func TestExplainSingleDriver(t *testing.T) {
	e := NewStatExplainer()
	schema := models.FeatureSchema{"close", "rsi_14", "ticker_NVDA"}
	importances := []float64{0.9, 0.1, 0.9}

	// Raw close swings wildly and the one-hot is weighted high, but both
	// must be ignored; rsi is the only candidate.
	table := tableWith(12, func(i int, r *models.FeatureRow) {
		r.Close = float64(100 + 50*i)
		r.RSI14 = 50
		if i == 11 {
			r.RSI14 = 75
		}
	})
	assert.Equal(t, "Driven mainly by high RSI level.", e.Explain(context.Background(), schema, importances, table))
}

func TestExplainTopTwoByScore(t *testing.T) {
	e := NewStatExplainer()
	schema := models.FeatureSchema{"return_1d", "rsi_14", "volume_ratio"}
	importances := []float64{0.6, 0.3, 0.1}

	// All three deviate identically in z terms, so importance decides.
	table := tableWith(12, func(i int, r *models.FeatureRow) {
		r.Return1D = 0.01
		r.RSI14 = 50
		r.VolumeRatio = 1
		if i == 11 {
			r.Return1D = -0.05
			r.RSI14 = 20
			r.VolumeRatio = 3
		}
	})
	got := e.Explain(context.Background(), schema, importances, table)
	assert.Equal(t, "Driven mainly by low short-term momentum and low RSI level.", got)
}

func TestExplainTieKeepsSchemaOrder(t *testing.T) {
	e := NewStatExplainer()
	schema := models.FeatureSchema{"volatility_5d", "daily_range"}
	importances := []float64{0.5, 0.5}

	// Identical series and weights produce identical scores; the earlier
	// schema column must stay first.
	table := tableWith(12, func(i int, r *models.FeatureRow) {
		r.Volatility5D = 0.01
		r.DailyRange = 0.01
		if i == 11 {
			r.Volatility5D = 0.04
			r.DailyRange = 0.04
		}
	})
	got := e.Explain(context.Background(), schema, importances, table)
	assert.Equal(t, "Driven mainly by high recent volatility and high intraday price range.", got)
}

func TestExplainNonFiniteLatestScoresZero(t *testing.T) {
	e := NewStatExplainer()
	schema := models.FeatureSchema{"rsi_14", "volume_ratio"}
	importances := []float64{0.9, 0.1}

	// rsi has history but no value today: z is treated as zero, so the
	// mildly unusual volume wins despite the lower weight.
	table := tableWith(12, func(i int, r *models.FeatureRow) {
		r.RSI14 = float64(40 + i)
		r.VolumeRatio = 1
		if i == 11 {
			r.RSI14 = math.NaN()
			r.VolumeRatio = 1.5
		}
	})
	got := e.Explain(context.Background(), schema, importances, table)
	assert.Equal(t, "Driven mainly by high unusual trading volume and high RSI level.", got)
}

func TestExplainUnmappedColumnUsesRawName(t *testing.T) {
	e := NewStatExplainer()
	schema := models.FeatureSchema{"volume_ma_20"}
	importances := []float64{1}

	table := tableWith(12, func(i int, r *models.FeatureRow) {
		r.VolumeMA20 = 1000
		if i == 11 {
			r.VolumeMA20 = 400
		}
	})
	got := e.Explain(context.Background(), schema, importances, table)
	assert.Equal(t, "Driven mainly by low volume_ma_20.", got)
}
