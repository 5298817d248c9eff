package massive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcast/pkg/config"
	"stockcast/pkg/logger"
)

func testClient(t *testing.T, baseURL string, attempts int) (*Client, *[]time.Duration) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Massive.BaseURL = baseURL
	cfg.Massive.APIKey = "test-key"
	cfg.Massive.Timeout = 5 * time.Second
	cfg.Massive.MaxAttempts = attempts

	c := New(cfg, nil, logger.Nop())
	delays := &[]time.Duration{}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	c.randFloat = func() float64 { return 0 }
	return c, delays
}

func TestGroupedDailyParsesRows(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/aggs/grouped/locale/us/market/stocks/2026-01-05", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "true", r.URL.Query().Get("adjusted"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"resultsCount": 4,
			"results": [
				{"T": "NVDA", "o": 100, "h": 105, "l": 99, "c": 104, "v": 1000, "vw": 102.5},
				{"T": "AAPL", "o": 200, "c": 198},
				{"T": "", "o": 1, "c": 2, "v": 3},
				{"T": "MSFT", "c": 300, "v": 500}
			]
		}`))
	}))
	defer srv.Close()

	c, _ := testClient(t, srv.URL, 4)
	bars, err := c.GroupedDaily(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, bars, 2, "rows without ticker or open must be dropped")

	nvda := bars[0]
	assert.Equal(t, "NVDA", nvda.Ticker)
	assert.Equal(t, day, nvda.Date)
	assert.Equal(t, 100.0, nvda.Open)
	assert.Equal(t, 104.0, nvda.Close)
	assert.Equal(t, 1000.0, nvda.Volume)
	require.NotNil(t, nvda.High)
	assert.Equal(t, 105.0, *nvda.High)
	require.NotNil(t, nvda.VWAP)
	assert.Equal(t, 102.5, *nvda.VWAP)

	aapl := bars[1]
	assert.Equal(t, 0.0, aapl.Volume, "missing volume defaults to zero")
	assert.Nil(t, aapl.High)
	assert.Nil(t, aapl.Low)
	assert.Nil(t, aapl.VWAP)
}

func TestGroupedDailyRetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			w.Header().Set("Retry-After", "0.25")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`{"results": [{"T": "NVDA", "o": 1, "c": 2}]}`))
		}
	}))
	defer srv.Close()

	c, delays := testClient(t, srv.URL, 4)
	bars, err := c.GroupedDaily(context.Background(), time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, 3, calls)

	require.Len(t, *delays, 2)
	assert.Equal(t, 250*time.Millisecond, (*delays)[0], "numeric Retry-After wins over backoff")
	assert.Equal(t, 2*time.Second, (*delays)[1], "second retry doubles the base")
}

func TestGroupedDailyNonRetryableStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "no such day", http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := testClient(t, srv.URL, 4)
	_, err := c.GroupedDaily(context.Background(), time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Equal(t, 1, calls, "404 must not be retried")
	assert.Contains(t, err.Error(), "404")
}

func TestGroupedDailyExhaustsAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := testClient(t, srv.URL, 3)
	_, err := c.GroupedDaily(context.Background(), time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestBackoffCap(t *testing.T) {
	c, _ := testClient(t, "http://unused", 1)
	assert.Equal(t, maxBackoff, c.backoff("120", 0))
}
