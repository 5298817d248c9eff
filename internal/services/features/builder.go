package features

import (
	"math"

	"stockcast/internal/domain/models"
	"stockcast/pkg/util"
)

// Window sizes fixed at training time. Changing any of these invalidates
// the trained artifacts.
const (
	shortReturnWindow = 5
	longReturnWindow  = 10
	shortMAWindow     = 5
	longMAWindow      = 20
	shortVolWindow    = 5
	longVolWindow     = 10
	volumeMAWindow    = 20
	rsiWindow         = 14
)

// Build derives the full feature table for one ticker from its ascending
// daily bar series. One output row per input bar; any indicator whose
// window (or required input) is unavailable carries NaN on that row.
// Pure function of its inputs.
func Build(ticker string, bars []models.PriceBar, watchlist []string) *models.FeatureTable {
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	// 1-day returns feed the volatility windows, so compute them first.
	returns1 := make([]float64, len(bars))
	for i := range bars {
		returns1[i] = pctChange(closes, i, 1)
	}

	rows := make([]models.FeatureRow, len(bars))
	for i, b := range bars {
		r := models.FeatureRow{
			Ticker: ticker,
			Date:   b.Date,
			Open:   b.Open,
			High:   deref(b.High),
			Low:    deref(b.Low),
			Close:  b.Close,
			Volume: b.Volume,
			VWAP:   deref(b.VWAP),
		}

		r.Return1D = returns1[i]
		r.Return5D = pctChange(closes, i, shortReturnWindow)
		r.Return10D = pctChange(closes, i, longReturnWindow)

		r.MA5 = meanWindow(closes, i, shortMAWindow)
		r.MA20 = meanWindow(closes, i, longMAWindow)
		r.PriceToMA5 = ratio(b.Close, r.MA5)
		r.PriceToMA20 = ratio(b.Close, r.MA20)

		r.Volatility5D = stdWindow(returns1, i, shortVolWindow)
		r.Volatility10D = stdWindow(returns1, i, longVolWindow)

		r.VolumeMA20 = meanWindow(volumes, i, volumeMAWindow)
		r.VolumeRatio = ratio(b.Volume, r.VolumeMA20)

		r.RSI14 = rsi(closes, i, rsiWindow)
		r.DailyRange = dailyRange(b)
		r.CloseToVWAP = closeToVWAP(b)
		r.DayOfWeek = float64(util.WeekdayIndex(b.Date))

		rows[i] = r
	}

	return &models.FeatureTable{Ticker: ticker, Watchlist: watchlist, Rows: rows}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func deref(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// pctChange returns (vals[i] - vals[i-k]) / vals[i-k], NaN when the lagged
// value is out of range or zero.
func pctChange(vals []float64, i, k int) float64 {
	if k <= 0 || i-k < 0 {
		return math.NaN()
	}
	prev := vals[i-k]
	if prev == 0 || !isFinite(prev) || !isFinite(vals[i]) {
		return math.NaN()
	}
	return (vals[i] - prev) / prev
}

// ratio guards division so an empty or zero denominator yields NaN instead
// of an infinity leaking into the table.
func ratio(num, den float64) float64 {
	if den == 0 || !isFinite(den) || !isFinite(num) {
		return math.NaN()
	}
	return num / den
}

// meanWindow returns the simple mean of the trailing window ending at i,
// NaN until the window is full or if it contains a non-finite value.
func meanWindow(vals []float64, i, window int) float64 {
	if window <= 0 || i-window+1 < 0 {
		return math.NaN()
	}
	sum := 0.0
	for j := i - window + 1; j <= i; j++ {
		v := vals[j]
		if !isFinite(v) {
			return math.NaN()
		}
		sum += v
	}
	return sum / float64(window)
}

// stdWindow returns the sample standard deviation of the trailing window
// ending at i, NaN until the window is full or if it contains a non-finite
// value.
func stdWindow(vals []float64, i, window int) float64 {
	if window <= 1 || i-window+1 < 0 {
		return math.NaN()
	}
	sum := 0.0
	sum2 := 0.0
	for j := i - window + 1; j <= i; j++ {
		v := vals[j]
		if !isFinite(v) {
			return math.NaN()
		}
		sum += v
		sum2 += v * v
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// rsi computes the simple-mean RSI over the trailing window of close deltas
// ending at i. A delta needs the prior close, so the first defined value is
// at index == window. All-gain windows resolve to 100, all-loss to 0, and a
// perfectly flat window stays undefined.
func rsi(closes []float64, i, window int) float64 {
	if window <= 0 || i-window < 0 {
		return math.NaN()
	}
	gain := 0.0
	loss := 0.0
	for j := i - window + 1; j <= i; j++ {
		d := closes[j] - closes[j-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(window)
	avgLoss := loss / float64(window)
	if avgLoss == 0 {
		if avgGain == 0 {
			return math.NaN()
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// dailyRange is (high - low) / open; undefined when high or low was never
// reported for the bar, or open is zero.
func dailyRange(b models.PriceBar) float64 {
	if b.High == nil || b.Low == nil || b.Open == 0 {
		return math.NaN()
	}
	return (*b.High - *b.Low) / b.Open
}

// closeToVWAP is close / vwap; undefined when the bar carries no vwap.
func closeToVWAP(b models.PriceBar) float64 {
	if b.VWAP == nil || *b.VWAP == 0 {
		return math.NaN()
	}
	return b.Close / *b.VWAP
}
