package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcast/internal/domain/models"
	svcache "stockcast/internal/service/cache"
	pkgcache "stockcast/pkg/cache"
)

func refreshFixture(cache *svcache.ForecastCache) (*RefreshForecastJob, *fakePredictionStore, *stubLoader) {
	hist := &fakeHistoryStore{bars: map[string][]models.PriceBar{
		"NVDA": seriesBars("NVDA", 25, 124),
		"AAPL": seriesBars("AAPL", 25, 210),
	}}
	preds := &fakePredictionStore{}
	loader := &stubLoader{clf: &stubClassifier{prob: 0.7, n: len(fullSchema)}, schema: fullSchema}
	svc := NewPredictionService(hist, preds, loader, &stubExplainer{why: "test rationale"}, cache, testWatchlist, 60, 25, 0.5, nil)
	return NewRefreshForecastJob(svc, cache, nil), preds, loader
}

func TestRefreshJobIdentity(t *testing.T) {
	job, _, _ := refreshFixture(nil)
	assert.Equal(t, "refresh_forecast", job.Name())
	assert.Equal(t, RefreshJobType, job.Type())
}

func TestRefreshJobRunsPrediction(t *testing.T) {
	ctx := context.Background()
	cache := svcache.NewForecastCache(pkgcache.NewMemoryCache(), time.Minute, time.Minute)
	job, preds, _ := refreshFixture(cache)

	payload := map[string]interface{}{"date": "2026-01-05"}
	require.NoError(t, job.Handle(ctx, payload))

	require.Len(t, preds.runs, 1)
	cached, err := cache.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, cached.Predictions, 2)
}

func TestRefreshJobSkipsWhenLocked(t *testing.T) {
	ctx := context.Background()
	cache := svcache.NewForecastCache(pkgcache.NewMemoryCache(), time.Minute, time.Minute)
	job, preds, loader := refreshFixture(cache)

	held, err := cache.LockRefresh(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, job.Handle(ctx, RefreshPayload{Date: "2026-01-05"}))
	assert.Equal(t, 0, loader.calls)
	assert.Empty(t, preds.runs)
}

func TestRefreshJobReleasesLock(t *testing.T) {
	ctx := context.Background()
	cache := svcache.NewForecastCache(pkgcache.NewMemoryCache(), time.Minute, time.Minute)
	job, _, _ := refreshFixture(cache)

	require.NoError(t, job.Handle(ctx, RefreshPayload{Date: "2026-01-05"}))

	// lock is free again after the refresh
	held, err := cache.LockRefresh(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestRefreshJobBadPayload(t *testing.T) {
	job, _, _ := refreshFixture(nil)
	assert.Error(t, job.Handle(context.Background(), 42))
}
