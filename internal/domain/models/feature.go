package models

import (
	"math"
	"strings"
	"time"
)

// FeatureSchema is the ordered column list a trained classifier expects.
// It is fixed at training time and loaded alongside the model; the pipeline
// conforms to it rather than inferring its own feature set.
type FeatureSchema []string

// TickerColumnPrefix marks one-hot ticker identity columns in a schema.
const TickerColumnPrefix = "ticker_"

// IsTickerColumn reports whether col is a one-hot ticker identity column.
func IsTickerColumn(col string) bool {
	return strings.HasPrefix(col, TickerColumnPrefix)
}

// IsRawColumn reports whether col is a raw bar field rather than a derived
// indicator. The explainer excludes these from its ranking.
func IsRawColumn(col string) bool {
	switch col {
	case "open", "high", "low", "close", "volume", "vwap":
		return true
	}
	return false
}

// FeatureRow holds one date's raw bar values and derived indicators for a
// single ticker. NaN marks an undefined value: a rolling window that has not
// filled yet, a missing optional bar field, or a zero divisor. Ticker
// identity stays a single field here; one-hot columns materialize only when
// a row is aligned to a FeatureSchema.
type FeatureRow struct {
	Ticker string
	Date   time.Time

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	VWAP   float64

	Return1D  float64
	Return5D  float64
	Return10D float64

	MA5         float64
	MA20        float64
	PriceToMA5  float64
	PriceToMA20 float64

	Volatility5D  float64
	Volatility10D float64

	VolumeMA20  float64
	VolumeRatio float64

	RSI14       float64
	DailyRange  float64
	CloseToVWAP float64
	DayOfWeek   float64
}

// FeatureTable is the per-ticker output of feature engineering: one row per
// input bar, strictly ascending by date. Watchlist defines which one-hot
// ticker columns are addressable.
type FeatureTable struct {
	Ticker    string
	Watchlist []string
	Rows      []FeatureRow
}

// Latest returns the chronologically last row.
func (t *FeatureTable) Latest() (*FeatureRow, bool) {
	if len(t.Rows) == 0 {
		return nil, false
	}
	return &t.Rows[len(t.Rows)-1], true
}

// Value resolves a schema column name against one row. The second return is
// false when the column is not addressable in this table at all (unknown
// name, or a one-hot for a ticker outside the watchlist); an addressable
// column may still carry NaN for "undefined on this row".
func (t *FeatureTable) Value(r *FeatureRow, col string) (float64, bool) {
	switch col {
	case "open":
		return r.Open, true
	case "high":
		return r.High, true
	case "low":
		return r.Low, true
	case "close":
		return r.Close, true
	case "volume":
		return r.Volume, true
	case "vwap":
		return r.VWAP, true
	case "return_1d":
		return r.Return1D, true
	case "return_5d":
		return r.Return5D, true
	case "return_10d":
		return r.Return10D, true
	case "ma_5":
		return r.MA5, true
	case "ma_20":
		return r.MA20, true
	case "price_to_ma5":
		return r.PriceToMA5, true
	case "price_to_ma20":
		return r.PriceToMA20, true
	case "volatility_5d":
		return r.Volatility5D, true
	case "volatility_10d":
		return r.Volatility10D, true
	case "volume_ma_20":
		return r.VolumeMA20, true
	case "volume_ratio":
		return r.VolumeRatio, true
	case "rsi_14":
		return r.RSI14, true
	case "daily_range":
		return r.DailyRange, true
	case "close_to_vwap":
		return r.CloseToVWAP, true
	case "day_of_week":
		return r.DayOfWeek, true
	}

	if IsTickerColumn(col) {
		name := strings.TrimPrefix(col, TickerColumnPrefix)
		for _, w := range t.Watchlist {
			if w == name {
				if r.Ticker == name {
					return 1, true
				}
				return 0, true
			}
		}
		return math.NaN(), false
	}

	return math.NaN(), false
}

// Column returns the column's value across all rows (NaN where undefined),
// or false when the column is not addressable.
func (t *FeatureTable) Column(col string) ([]float64, bool) {
	if len(t.Rows) == 0 {
		return nil, false
	}
	if _, ok := t.Value(&t.Rows[0], col); !ok {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i := range t.Rows {
		v, _ := t.Value(&t.Rows[i], col)
		out[i] = v
	}
	return out, true
}
