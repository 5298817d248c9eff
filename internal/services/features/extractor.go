package features

import (
	"math"

	"stockcast/internal/domain/models"
)

// AlignLatest maps the chronologically last feature row onto the trained
// column schema, in schema order. Columns the table cannot address are
// filled with NaN. The second return is true when any schema column is
// missing or undefined on that row; callers must not score such a vector.
func AlignLatest(table *models.FeatureTable, schema models.FeatureSchema) ([]float64, bool) {
	latest, ok := table.Latest()
	if !ok {
		return nil, true
	}

	vec := make([]float64, len(schema))
	hasMissing := false
	for i, col := range schema {
		v, addressable := table.Value(latest, col)
		if !addressable || !isFinite(v) {
			vec[i] = math.NaN()
			hasMissing = true
			continue
		}
		vec[i] = v
	}
	return vec, hasMissing
}

// FiniteMeanStd returns the mean and sample standard deviation of the
// finite values in vals. Fewer than two finite values leaves both NaN.
func FiniteMeanStd(vals []float64) (mean, std float64) {
	sum := 0.0
	sum2 := 0.0
	n := 0
	for _, v := range vals {
		if !isFinite(v) {
			continue
		}
		sum += v
		sum2 += v * v
		n++
	}
	if n < 2 {
		return math.NaN(), math.NaN()
	}
	fn := float64(n)
	mean = sum / fn
	variance := (sum2 - fn*mean*mean) / (fn - 1)
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}
