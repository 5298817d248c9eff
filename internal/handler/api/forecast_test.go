package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcast/internal/domain/models"
	domrepo "stockcast/internal/domain/repository"
	"stockcast/internal/usecase"
)

type fakePredStore struct {
	latest    *models.PredictionRun
	latestErr error
}

func (f *fakePredStore) StoreRun(ctx context.Context, run *models.PredictionRun) error { return nil }

func (f *fakePredStore) LatestRun(ctx context.Context) (*models.PredictionRun, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

type fakeMovers struct {
	recent []models.DailyMover
	err    error
}

func (f *fakeMovers) Record(ctx context.Context, m *models.DailyMover) error { return nil }

func (f *fakeMovers) Recent(ctx context.Context, limit int) ([]models.DailyMover, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type fakeHistory struct {
	bars map[string][]models.PriceBar
}

func (f *fakeHistory) History(ctx context.Context, ticker string, from time.Time) ([]models.PriceBar, error) {
	return f.bars[ticker], nil
}

func (f *fakeHistory) LatestN(ctx context.Context, ticker string, n int) ([]models.PriceBar, error) {
	bars := f.bars[ticker]
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func testHandler(preds *fakePredStore, movers *fakeMovers, hist *fakeHistory, checks []HealthCheck) *ForecastHandler {
	reads := usecase.NewForecastReadUseCase(preds, movers, hist, nil, nil)
	return NewForecastHandler(nil, reads, checks)
}

func doGet(h *ForecastHandler, target string) (*httptest.ResponseRecorder, envelope) {
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestPredictionsLatest(t *testing.T) {
	up := true
	prob := 0.72
	preds := &fakePredStore{latest: &models.PredictionRun{
		AsOf: time.Date(2026, 2, 3, 21, 0, 0, 0, time.UTC),
		Predictions: []models.Prediction{
			{Ticker: "NVDA", PredUp: &up, ProbUp: &prob, Why: "Driven mainly by high RSI level."},
			{Ticker: "TSLA", Why: "Not enough recent history yet."},
		},
	}}
	h := testHandler(preds, &fakeMovers{}, &fakeHistory{}, nil)

	rec, env := doGet(h, "/api/v1/predictions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.Status)

	var run models.PredictionRun
	require.NoError(t, json.Unmarshal(env.Data, &run))
	require.Len(t, run.Predictions, 2)
	assert.Equal(t, "NVDA", run.Predictions[0].Ticker)
	assert.Nil(t, run.Predictions[1].PredUp)
}

func TestPredictionsLatestNotFound(t *testing.T) {
	preds := &fakePredStore{latestErr: domrepo.ErrNotFound}
	h := testHandler(preds, &fakeMovers{}, &fakeHistory{}, nil)

	_, env := doGet(h, "/api/v1/predictions")
	assert.Equal(t, http.StatusNotFound, env.Status)
	assert.Contains(t, string(env.Data), "ERR_NOT_FOUND")
}

func TestMovers(t *testing.T) {
	movers := &fakeMovers{recent: []models.DailyMover{
		{Date: time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC), Ticker: "TSLA", PercentChange: -4.2, Close: 199.5},
		{Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Ticker: "NVDA", PercentChange: 3.1, Close: 124.0},
	}}
	h := testHandler(&fakePredStore{}, movers, &fakeHistory{}, nil)

	rec, env := doGet(h, "/api/v1/movers?days=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var res usecase.MoversResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 2, res.Days)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "2026-01-06", res.Items[0].Date)
	assert.Equal(t, "TSLA", res.Items[0].Ticker)
}

func TestMoversRejectsOutOfRangeDays(t *testing.T) {
	h := testHandler(&fakePredStore{}, &fakeMovers{}, &fakeHistory{}, nil)

	_, env := doGet(h, "/api/v1/movers?days=-1")
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestMoversDefaultsDays(t *testing.T) {
	h := testHandler(&fakePredStore{}, &fakeMovers{}, &fakeHistory{}, nil)

	_, env := doGet(h, "/api/v1/movers")
	var res usecase.MoversResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 30, res.Days)
}

func TestHistory(t *testing.T) {
	high := 104.2
	hist := &fakeHistory{bars: map[string][]models.PriceBar{
		"NVDA": {
			{Ticker: "NVDA", Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Open: 100, High: &high, Close: 103, Volume: 1200000},
			{Ticker: "NVDA", Date: time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC), Open: 103, Close: 101, Volume: 900000},
		},
	}}
	h := testHandler(&fakePredStore{}, &fakeMovers{}, hist, nil)

	rec, env := doGet(h, "/api/v1/history/nvda?days=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var res usecase.HistoryResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "NVDA", res.Ticker)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Bars, 2)
	assert.Equal(t, "2026-01-05", res.Bars[0].Date)
	require.NotNil(t, res.Bars[0].High)
	assert.Nil(t, res.Bars[1].High)
}

func TestPredictionsRateLimited(t *testing.T) {
	preds := &fakePredStore{latest: &models.PredictionRun{AsOf: time.Now()}}
	h := testHandler(preds, &fakeMovers{}, &fakeHistory{}, nil)

	var last envelope
	for i := 0; i < 6; i++ {
		_, last = doGet(h, "/api/v1/predictions")
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Status)
}

func TestHealthz(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		checks := []HealthCheck{
			{Name: "clickhouse", Check: func(ctx context.Context) error { return nil }},
			{Name: "redis", Check: func(ctx context.Context) error { return nil }},
		}
		h := testHandler(&fakePredStore{}, &fakeMovers{}, &fakeHistory{}, checks)

		_, env := doGet(h, "/healthz")
		assert.Equal(t, http.StatusOK, env.Status)
		assert.Contains(t, string(env.Data), `"clickhouse":"ok"`)
	})

	t.Run("degraded", func(t *testing.T) {
		checks := []HealthCheck{
			{Name: "clickhouse", Check: func(ctx context.Context) error { return errors.New("dial tcp: refused") }},
		}
		h := testHandler(&fakePredStore{}, &fakeMovers{}, &fakeHistory{}, checks)

		_, env := doGet(h, "/healthz")
		assert.Equal(t, http.StatusServiceUnavailable, env.Status)
		assert.Contains(t, string(env.Data), "degraded")
	})
}
