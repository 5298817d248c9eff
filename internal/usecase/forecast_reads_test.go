package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcast/internal/domain/models"
	domrepo "stockcast/internal/domain/repository"
	svcache "stockcast/internal/service/cache"
	pkgcache "stockcast/pkg/cache"
)

func readFixture(preds *fakePredictionStore, movers *fakeMoverStore, hist *fakeHistoryStore, cache *svcache.ForecastCache) *ForecastReadUseCase {
	return NewForecastReadUseCase(preds, movers, hist, cache, nil)
}

func TestLatestPredictionsCachesStoreResult(t *testing.T) {
	ctx := context.Background()
	up := true
	prob := 0.7
	stored := &models.PredictionRun{
		AsOf:        time.Date(2026, 2, 3, 21, 0, 0, 0, time.UTC),
		Predictions: []models.Prediction{{Ticker: "NVDA", PredUp: &up, ProbUp: &prob, Why: "Driven mainly by high RSI level."}},
	}
	preds := &fakePredictionStore{latest: stored}
	cache := svcache.NewForecastCache(pkgcache.NewMemoryCache(), time.Minute, time.Minute)
	uc := readFixture(preds, &fakeMoverStore{}, &fakeHistoryStore{}, cache)

	got, err := uc.LatestPredictions(ctx)
	require.NoError(t, err)
	assert.Equal(t, stored.Predictions, got.Predictions)
	assert.Equal(t, 1, preds.latestCalls)

	// second read is served from cache
	got2, err := uc.LatestPredictions(ctx)
	require.NoError(t, err)
	assert.Equal(t, got.Predictions, got2.Predictions)
	assert.Equal(t, 1, preds.latestCalls)
}

func TestLatestPredictionsNotFound(t *testing.T) {
	preds := &fakePredictionStore{latestErr: domrepo.ErrNotFound}
	uc := readFixture(preds, &fakeMoverStore{}, &fakeHistoryStore{}, nil)

	_, err := uc.LatestPredictions(context.Background())
	assert.True(t, errors.Is(err, domrepo.ErrNotFound))
}

type fakeComputer struct {
	run   *models.PredictionRun
	err   error
	calls int
}

func (c *fakeComputer) Run(ctx context.Context) (*models.PredictionRun, error) {
	c.calls++
	return c.run, c.err
}

func TestLatestPredictionsComputesOnMiss(t *testing.T) {
	fresh := &models.PredictionRun{
		AsOf:        time.Date(2026, 2, 3, 21, 0, 0, 0, time.UTC),
		Predictions: []models.Prediction{{Ticker: "NVDA", Why: "Not enough recent history yet."}},
	}
	preds := &fakePredictionStore{latestErr: domrepo.ErrNotFound}
	comp := &fakeComputer{run: fresh}
	uc := readFixture(preds, &fakeMoverStore{}, &fakeHistoryStore{}, nil)
	uc.SetComputeOnMiss(comp)

	got, err := uc.LatestPredictions(context.Background())
	require.NoError(t, err)
	assert.Same(t, fresh, got)
	assert.Equal(t, 1, comp.calls)

	// a store failure that is not a miss never triggers computation
	preds.latestErr = errors.New("clickhouse down")
	_, err = uc.LatestPredictions(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, comp.calls)
}

func TestRecentMoversClampsDays(t *testing.T) {
	movers := &fakeMoverStore{recent: []models.DailyMover{
		{Date: time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC), Ticker: "TSLA", PercentChange: -4.2, Close: 199.5},
		{Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Ticker: "NVDA", PercentChange: 3.1, Close: 124.0},
	}}
	uc := readFixture(&fakePredictionStore{}, movers, &fakeHistoryStore{}, nil)

	t.Run("default", func(t *testing.T) {
		res, err := uc.RecentMovers(context.Background(), MoversParams{})
		require.NoError(t, err)
		assert.Equal(t, 30, res.Days)
		require.Len(t, res.Items, 2)
		assert.Equal(t, MoverItem{Date: "2026-01-06", Ticker: "TSLA", PercentChange: -4.2, Close: 199.5}, res.Items[0])
	})

	t.Run("upper clamp", func(t *testing.T) {
		res, err := uc.RecentMovers(context.Background(), MoversParams{Days: 4000})
		require.NoError(t, err)
		assert.Equal(t, 365, res.Days)
	})

	t.Run("limit", func(t *testing.T) {
		res, err := uc.RecentMovers(context.Background(), MoversParams{Days: 1})
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "TSLA", res.Items[0].Ticker)
	})
}

func TestRecentMoversUsesCache(t *testing.T) {
	ctx := context.Background()
	cache := svcache.NewForecastCache(pkgcache.NewMemoryCache(), time.Minute, time.Minute)
	movers := &fakeMoverStore{recent: []models.DailyMover{
		{Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Ticker: "NVDA", PercentChange: 3.1, Close: 124.0},
	}}
	uc := readFixture(&fakePredictionStore{}, movers, &fakeHistoryStore{}, cache)

	res, err := uc.RecentMovers(ctx, MoversParams{Days: 7})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	// drop the store's data; the cached window still serves
	movers.recent = nil
	res2, err := uc.RecentMovers(ctx, MoversParams{Days: 7})
	require.NoError(t, err)
	assert.Equal(t, res.Items, res2.Items)

	// a different window misses the cache and sees the empty store
	res3, err := uc.RecentMovers(ctx, MoversParams{Days: 8})
	require.NoError(t, err)
	assert.Empty(t, res3.Items)
}

func TestTickerHistory(t *testing.T) {
	bars := seriesBars("NVDA", 5, 124)
	bars[2].High = nil
	hist := &fakeHistoryStore{bars: map[string][]models.PriceBar{"NVDA": bars}}
	uc := readFixture(&fakePredictionStore{}, &fakeMoverStore{}, hist, nil)

	res, err := uc.TickerHistory(context.Background(), HistoryParams{Ticker: "nvda", Days: 3})
	require.NoError(t, err)

	assert.Equal(t, "NVDA", res.Ticker)
	assert.Equal(t, 3, res.Days)
	assert.Equal(t, 3, res.Count)
	require.Len(t, res.Bars, 3)
	assert.Equal(t, "2024-10-09", res.Bars[0].Date)
	assert.Nil(t, res.Bars[0].High)
	assert.Equal(t, 124.0, res.Bars[2].Close)
}

func TestTickerHistoryRequiresTicker(t *testing.T) {
	uc := readFixture(&fakePredictionStore{}, &fakeMoverStore{}, &fakeHistoryStore{}, nil)
	_, err := uc.TickerHistory(context.Background(), HistoryParams{Ticker: "  "})
	assert.Error(t, err)
}

func TestTickerHistoryEmptyIsNotAnError(t *testing.T) {
	uc := readFixture(&fakePredictionStore{}, &fakeMoverStore{}, &fakeHistoryStore{}, nil)
	res, err := uc.TickerHistory(context.Background(), HistoryParams{Ticker: "MSFT"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Empty(t, res.Bars)
}
