package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"

	"stockcast/internal/domain/models"
	domsvc "stockcast/internal/domain/service"
	"stockcast/internal/service/metrics"
	"stockcast/internal/services/features"
)

// FallbackWhy is used when no feature-level rationale can be computed.
const FallbackWhy = "Based on recent price and volume patterns."

// minExplainRows is the shortest history that gives the per-column
// statistics any meaning.
const minExplainRows = 10

// friendly maps schema columns to UI-ready phrases. Unmapped columns fall
// back to their raw name.
var friendly = map[string]string{
	"return_1d":  "short-term momentum",
	"return_5d":  "5-day momentum",
	"return_10d": "10-day momentum",

	"price_to_ma5":  "price vs 5-day average",
	"price_to_ma20": "price vs 20-day average",

	"volatility_5d":  "recent volatility",
	"volatility_10d": "10-day volatility",
	"daily_range":    "intraday price range",

	"volume_ratio": "unusual trading volume",

	"rsi_14":        "RSI level",
	"close_to_vwap": "close vs VWAP",

	"day_of_week": "day-of-week pattern",
}

// StatExplainer ranks schema columns by importance times how unusual the
// latest value is against the column's own history, and phrases the top
// two.
type StatExplainer struct{}

func NewStatExplainer() *StatExplainer { return &StatExplainer{} }

func (e *StatExplainer) Explain(ctx context.Context, schema models.FeatureSchema, importances []float64, table *models.FeatureTable) string {
	if len(importances) == 0 || table == nil || len(table.Rows) < minExplainRows {
		metrics.ExplainerFallbacks.Inc()
		return FallbackWhy
	}
	latest, ok := table.Latest()
	if !ok {
		metrics.ExplainerFallbacks.Inc()
		return FallbackWhy
	}

	type scored struct {
		score float64
		col   string
		z     float64
	}
	var scores []scored
	for i, col := range schema {
		// Ticker identity and raw OHLCV levels say nothing useful about
		// why today looks different.
		if models.IsTickerColumn(col) || models.IsRawColumn(col) {
			continue
		}
		series, ok := table.Column(col)
		if !ok {
			continue
		}
		mean, std := features.FiniteMeanStd(series)
		if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
			continue
		}

		z := 0.0
		if v, ok := table.Value(latest, col); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
			z = (v - mean) / std
		}
		imp := 0.0
		if i < len(importances) {
			imp = importances[i]
		}
		scores = append(scores, scored{score: math.Abs(z) * imp, col: col, z: z})
	}

	if len(scores) == 0 {
		metrics.ExplainerFallbacks.Inc()
		return FallbackWhy
	}

	// Stable keeps schema order between equal scores.
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })
	top := scores
	if len(top) > 2 {
		top = top[:2]
	}

	phrases := make([]string, 0, len(top))
	for _, s := range top {
		label, ok := friendly[s.col]
		if !ok {
			label = s.col
		}
		direction := "high"
		if s.z < 0 {
			direction = "low"
		}
		phrases = append(phrases, direction+" "+label)
	}

	if len(phrases) == 1 {
		return fmt.Sprintf("Driven mainly by %s.", phrases[0])
	}
	return fmt.Sprintf("Driven mainly by %s and %s.", phrases[0], phrases[1])
}

var _ domsvc.Explainer = (*StatExplainer)(nil)
