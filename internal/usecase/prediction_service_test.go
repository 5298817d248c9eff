package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcast/internal/domain/models"
	svcache "stockcast/internal/service/cache"
	pkgcache "stockcast/pkg/cache"
)

// every column here is finite on the last row of a 25-bar full series
var fullSchema = models.FeatureSchema{"close", "return_1d", "rsi_14", "close_to_vwap", "ticker_NVDA", "ticker_AAPL"}

func predictFixture(hist *fakeHistoryStore, clf *stubClassifier, cache *svcache.ForecastCache) (*PredictionService, *fakePredictionStore, *stubLoader) {
	preds := &fakePredictionStore{}
	loader := &stubLoader{clf: clf, schema: fullSchema}
	svc := NewPredictionService(hist, preds, loader, &stubExplainer{why: "test rationale"}, cache, testWatchlist, 60, 25, 0.5, nil)
	return svc, preds, loader
}

func TestPredictRunHappyPath(t *testing.T) {
	hist := &fakeHistoryStore{bars: map[string][]models.PriceBar{
		"NVDA": seriesBars("NVDA", 25, 124),
		"AAPL": seriesBars("AAPL", 30, 210),
	}}
	clf := &stubClassifier{prob: 0.6234567890, imps: []float64{0.3, 0.3, 0.2, 0.1, 0.05, 0.05}, n: len(fullSchema)}
	cache := svcache.NewForecastCache(pkgcache.NewMemoryCache(), time.Minute, time.Minute)
	svc, preds, _ := predictFixture(hist, clf, cache)

	run, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Predictions, 2)
	assert.WithinDuration(t, time.Now().UTC(), run.AsOf, 5*time.Second)

	for i, ticker := range testWatchlist {
		p := run.Predictions[i]
		assert.Equal(t, ticker, p.Ticker)
		require.NotNil(t, p.PredUp)
		require.NotNil(t, p.ProbUp)
		assert.True(t, *p.PredUp)
		assert.Equal(t, 0.623457, *p.ProbUp)
		assert.Equal(t, "test rationale", p.Why)
	}

	require.Len(t, preds.runs, 1)
	assert.Same(t, run, preds.runs[0])

	cached, err := cache.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.Predictions, cached.Predictions)
}

func TestPredictInsufficientHistory(t *testing.T) {
	hist := &fakeHistoryStore{bars: map[string][]models.PriceBar{
		"NVDA": seriesBars("NVDA", 25, 124),
		"AAPL": seriesBars("AAPL", 24, 210),
	}}
	clf := &stubClassifier{prob: 0.8, n: len(fullSchema)}
	svc, _, _ := predictFixture(hist, clf, nil)

	run, err := svc.Run(context.Background())
	require.NoError(t, err)

	aapl := run.Predictions[1]
	assert.Equal(t, "AAPL", aapl.Ticker)
	assert.Nil(t, aapl.PredUp)
	assert.Nil(t, aapl.ProbUp)
	assert.Equal(t, "Not enough recent history yet.", aapl.Why)

	// the short ticker never reaches the classifier
	assert.Equal(t, 1, clf.callCount())
}

func TestPredictMissingFeatures(t *testing.T) {
	bars := seriesBars("NVDA", 25, 124)
	for i := range bars {
		bars[i].VWAP = nil // close_to_vwap becomes undefined
	}
	hist := &fakeHistoryStore{bars: map[string][]models.PriceBar{
		"NVDA": bars,
		"AAPL": seriesBars("AAPL", 30, 210),
	}}
	clf := &stubClassifier{prob: 0.8, n: len(fullSchema)}
	svc, _, _ := predictFixture(hist, clf, nil)

	run, err := svc.Run(context.Background())
	require.NoError(t, err)

	nvda := run.Predictions[0]
	assert.Nil(t, nvda.PredUp)
	assert.Nil(t, nvda.ProbUp)
	assert.Equal(t, "Missing feature values for today.", nvda.Why)
	assert.Equal(t, 1, clf.callCount())
}

func TestPredictThresholdBoundary(t *testing.T) {
	hist := &fakeHistoryStore{bars: map[string][]models.PriceBar{
		"NVDA": seriesBars("NVDA", 25, 124),
		"AAPL": seriesBars("AAPL", 25, 210),
	}}

	t.Run("exactly at threshold is up", func(t *testing.T) {
		svc, _, _ := predictFixture(hist, &stubClassifier{prob: 0.5, n: len(fullSchema)}, nil)
		run, err := svc.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, *run.Predictions[0].PredUp)
	})

	t.Run("below threshold is down", func(t *testing.T) {
		svc, _, _ := predictFixture(hist, &stubClassifier{prob: 0.49, n: len(fullSchema)}, nil)
		run, err := svc.Run(context.Background())
		require.NoError(t, err)
		assert.False(t, *run.Predictions[0].PredUp)
	})
}

func TestPredictHistoryErrorAbsorbed(t *testing.T) {
	hist := &fakeHistoryStore{
		bars:   map[string][]models.PriceBar{"AAPL": seriesBars("AAPL", 30, 210)},
		errFor: map[string]error{"NVDA": errors.New("store down")},
	}
	clf := &stubClassifier{prob: 0.7, n: len(fullSchema)}
	svc, _, _ := predictFixture(hist, clf, nil)

	run, err := svc.Run(context.Background())
	require.NoError(t, err)

	nvda := run.Predictions[0]
	assert.Nil(t, nvda.PredUp)
	assert.Equal(t, "Not enough recent history yet.", nvda.Why)

	aapl := run.Predictions[1]
	require.NotNil(t, aapl.PredUp)
	assert.True(t, *aapl.PredUp)
}

func TestPredictClassifierErrorAbsorbed(t *testing.T) {
	hist := &fakeHistoryStore{bars: map[string][]models.PriceBar{
		"NVDA": seriesBars("NVDA", 25, 124),
		"AAPL": seriesBars("AAPL", 25, 210),
	}}
	clf := &stubClassifier{err: errors.New("bad vector"), n: len(fullSchema)}
	svc, _, _ := predictFixture(hist, clf, nil)

	run, err := svc.Run(context.Background())
	require.NoError(t, err)
	for _, p := range run.Predictions {
		assert.Nil(t, p.PredUp)
		assert.Equal(t, "Missing feature values for today.", p.Why)
	}
}

func TestPredictArtifactLoadFailureIsFatal(t *testing.T) {
	hist := &fakeHistoryStore{}
	preds := &fakePredictionStore{}
	loader := &stubLoader{err: errors.New("artifacts missing")}
	svc := NewPredictionService(hist, preds, loader, &stubExplainer{}, nil, testWatchlist, 60, 25, 0.5, nil)

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load artifacts")
	assert.Empty(t, preds.runs)
	assert.Equal(t, 0, hist.callCount())
}

func TestPredictStoreRunFailureIsFatal(t *testing.T) {
	hist := &fakeHistoryStore{bars: map[string][]models.PriceBar{
		"NVDA": seriesBars("NVDA", 25, 124),
		"AAPL": seriesBars("AAPL", 25, 210),
	}}
	preds := &fakePredictionStore{storeErr: errors.New("insert failed")}
	loader := &stubLoader{clf: &stubClassifier{prob: 0.7, n: len(fullSchema)}, schema: fullSchema}
	svc := NewPredictionService(hist, preds, loader, &stubExplainer{}, nil, testWatchlist, 60, 25, 0.5, nil)

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store prediction run")
}
