package massive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stockcast/internal/domain/models"
	drepo "stockcast/internal/domain/repository"
	"stockcast/internal/service/ratelimit"
	"stockcast/pkg/config"
	xhttp "stockcast/pkg/http"
	"stockcast/pkg/logger"
	"stockcast/pkg/util"
)

const (
	groupedDailyPath = "/v2/aggs/grouped/locale/us/market/stocks/"
	rateKey          = "massive"
	maxBackoff       = 30 * time.Second
	pacePoll         = 50 * time.Millisecond
)

// Statuses worth another attempt; anything else fails immediately.
var retryable = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client fetches grouped daily aggregates from the Massive REST API.
type Client struct {
	baseURL     string
	apiKey      string
	maxAttempts int
	rateLimit   float64
	rateBurst   float64

	http    *xhttp.Client
	limiter *ratelimit.Limiter
	metrics drepo.Metrics
	logger  *logger.Logger

	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

func New(cfg *config.Config, m drepo.Metrics, l *logger.Logger) *Client {
	if l == nil {
		l = logger.Nop()
	}
	attempts := cfg.Massive.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.Massive.BaseURL, "/"),
		apiKey:      cfg.Massive.APIKey,
		maxAttempts: attempts,
		rateLimit:   cfg.Massive.RateLimit,
		rateBurst:   float64(cfg.Massive.RateBurst),
		http:        xhttp.NewClient(xhttp.WithTimeout(cfg.Massive.Timeout)),
		limiter:     ratelimit.New(),
		metrics:     m,
		logger:      l,
		sleep:       sleepCtx,
		randFloat:   rand.Float64,
	}
}

type groupedRow struct {
	Ticker string   `json:"T"`
	Open   *float64 `json:"o"`
	High   *float64 `json:"h"`
	Low    *float64 `json:"l"`
	Close  *float64 `json:"c"`
	Volume *float64 `json:"v"`
	VWAP   *float64 `json:"vw"`
}

type groupedResponse struct {
	Status       string       `json:"status"`
	ResultsCount int          `json:"resultsCount"`
	Results      []groupedRow `json:"results"`
}

// GroupedDaily returns one bar per ticker for the given trading day, the
// whole US stocks market in a single request. Rows without a ticker, open
// or close are dropped; a missing volume counts as zero; high, low and
// vwap stay unset when the source omits them.
func (c *Client) GroupedDaily(ctx context.Context, date time.Time) ([]models.PriceBar, error) {
	url := c.baseURL + groupedDailyPath + util.FormatDate(date)
	query := map[string][]string{
		"apiKey":   {c.apiKey},
		"adjusted": {"true"},
	}

	var resp groupedResponse
	if err := c.getJSON(ctx, url, query, &resp); err != nil {
		return nil, err
	}

	bars := make([]models.PriceBar, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Ticker == "" || r.Open == nil || r.Close == nil {
			continue
		}
		volume := 0.0
		if r.Volume != nil {
			volume = *r.Volume
		}
		bars = append(bars, models.PriceBar{
			Ticker: r.Ticker,
			Date:   date,
			Open:   *r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  *r.Close,
			Volume: volume,
			VWAP:   r.VWAP,
		})
	}

	c.logger.Info("fetched grouped daily",
		logger.Date("date", date),
		logger.Int("rows", len(bars)),
		logger.Int("dropped", len(resp.Results)-len(bars)))
	return bars, nil
}

func (c *Client) getJSON(ctx context.Context, url string, query map[string][]string, dest interface{}) error {
	var lastStatus int
	var lastBody string

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := c.pace(ctx); err != nil {
			return err
		}

		resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         url,
			QueryParams: query,
		})
		if err != nil {
			return fmt.Errorf("get %s: %w", url, err)
		}

		if resp.StatusCode == http.StatusOK {
			err := json.NewDecoder(resp.Body).Decode(dest)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode %s: %w", url, err)
			}
			return nil
		}

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		resp.Body.Close()
		lastStatus = resp.StatusCode
		lastBody = string(snippet)

		if !retryable[resp.StatusCode] {
			return fmt.Errorf("get %s: status %d body=%s", url, resp.StatusCode, lastBody)
		}

		delay := c.backoff(resp.Header.Get("Retry-After"), attempt)
		c.logger.Warn("retrying request",
			logger.Int("status", resp.StatusCode),
			logger.Int("attempt", attempt+1),
			logger.Duration("delay", delay))
		if c.metrics != nil {
			c.metrics.RecordFetchRetry()
		}
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("get %s: status %d after %d attempts body=%s", url, lastStatus, c.maxAttempts, lastBody)
}

// backoff honors a numeric Retry-After (seconds, possibly fractional) and
// falls back to exponential doubling, plus up to half a second of jitter,
// capped at maxBackoff.
func (c *Client) backoff(retryAfter string, attempt int) time.Duration {
	seconds := float64(int(1) << attempt)
	if retryAfter != "" {
		if v, err := strconv.ParseFloat(retryAfter, 64); err == nil {
			seconds = v
		}
	}
	seconds += c.randFloat() * 0.5
	d := time.Duration(seconds * float64(time.Second))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// pace blocks until the client-side token bucket admits one request.
func (c *Client) pace(ctx context.Context) error {
	if c.rateLimit <= 0 {
		return nil
	}
	for !c.limiter.Allow(rateKey, c.rateBurst, c.rateLimit) {
		if err := c.sleep(ctx, pacePoll); err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

var _ drepo.BarSource = (*Client)(nil)
