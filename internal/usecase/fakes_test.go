package usecase

import (
	"context"
	"sync"
	"time"

	"stockcast/internal/domain/models"
	domsvc "stockcast/internal/domain/service"
)

// spyMetrics counts metric calls by key so tests can assert on them.
type spyMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	stored []string
}

func newSpyMetrics() *spyMetrics {
	return &spyMetrics{errors: map[string]int{}}
}

func (m *spyMetrics) RecordBarStored(backend, ticker string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, backend+"/"+ticker)
}

func (m *spyMetrics) RecordFetchRetry() {}

func (m *spyMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *spyMetrics) RecordLastClose(ticker string, close float64) {}

func (m *spyMetrics) RecordLatency(op string, seconds float64) {}

func (m *spyMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type fakeBarSource struct {
	bars    []models.PriceBar
	err     error
	gotDate time.Time
}

func (f *fakeBarSource) GroupedDaily(ctx context.Context, date time.Time) ([]models.PriceBar, error) {
	f.gotDate = date
	if f.err != nil {
		return nil, f.err
	}
	return f.bars, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	stored  []*models.PriceBar
	batches int
	err     error
}

func (f *fakeStorage) Init(ctx context.Context) error { return nil }

func (f *fakeStorage) Store(ctx context.Context, bar *models.PriceBar) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, bar)
	return nil
}

func (f *fakeStorage) StoreBatch(ctx context.Context, bars []*models.PriceBar) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	f.stored = append(f.stored, bars...)
	return nil
}

func (f *fakeStorage) Health(ctx context.Context) error { return nil }

func (f *fakeStorage) Close() error { return nil }

type fakePublisher struct {
	published []*models.PriceBar
	err       error
	closed    bool
}

func (f *fakePublisher) Publish(ctx context.Context, bar *models.PriceBar) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, bar)
	return nil
}

func (f *fakePublisher) PublishBatch(ctx context.Context, bars []*models.PriceBar) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, bars...)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

type fakeMoverStore struct {
	recorded []*models.DailyMover
	recent   []models.DailyMover
	err      error
}

func (f *fakeMoverStore) Record(ctx context.Context, m *models.DailyMover) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, m)
	return nil
}

func (f *fakeMoverStore) Recent(ctx context.Context, limit int) ([]models.DailyMover, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type fakeHistoryStore struct {
	mu         sync.Mutex
	bars       map[string][]models.PriceBar
	errFor     map[string]error
	historyErr error
	calls      int
}

func (f *fakeHistoryStore) History(ctx context.Context, ticker string, from time.Time) ([]models.PriceBar, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if err, ok := f.errFor[ticker]; ok {
		return nil, err
	}
	return f.bars[ticker], nil
}

func (f *fakeHistoryStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeHistoryStore) LatestN(ctx context.Context, ticker string, n int) ([]models.PriceBar, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	bars := f.bars[ticker]
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

type fakePredictionStore struct {
	runs        []*models.PredictionRun
	latest      *models.PredictionRun
	storeErr    error
	latestErr   error
	latestCalls int
}

func (f *fakePredictionStore) StoreRun(ctx context.Context, run *models.PredictionRun) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakePredictionStore) LatestRun(ctx context.Context) (*models.PredictionRun, error) {
	f.latestCalls++
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

type stubClassifier struct {
	mu    sync.Mutex
	prob  float64
	err   error
	imps  []float64
	n     int
	calls int
}

func (s *stubClassifier) ProbUp(features []float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.prob, nil
}

func (s *stubClassifier) Importances() []float64 { return s.imps }

func (s *stubClassifier) NumFeatures() int { return s.n }

func (s *stubClassifier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubLoader struct {
	clf    domsvc.Classifier
	schema models.FeatureSchema
	err    error
	calls  int
}

func (s *stubLoader) Load(ctx context.Context) (domsvc.Classifier, models.FeatureSchema, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.clf, s.schema, nil
}

type stubExplainer struct {
	why string
}

func (s *stubExplainer) Explain(ctx context.Context, schema models.FeatureSchema, importances []float64, table *models.FeatureTable) string {
	return s.why
}

type queuedMsg struct {
	msgType string
	payload interface{}
}

type fakeQueue struct {
	mu   sync.Mutex
	msgs []queuedMsg
	err  error
}

func (f *fakeQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, queuedMsg{msgType: msgType, payload: payload})
	return nil
}

func fp(v float64) *float64 { return &v }

// seriesBars builds n consecutive weekday bars with every optional field
// set, closing at closeAt on the final bar.
func seriesBars(ticker string, n int, closeAt float64) []models.PriceBar {
	bars := make([]models.PriceBar, 0, n)
	day := time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC) // a Monday
	for i := 0; i < n; i++ {
		c := closeAt - float64(n-1-i)
		bars = append(bars, models.PriceBar{
			Ticker: ticker,
			Date:   day,
			Open:   c * 0.99,
			High:   fp(c * 1.02),
			Low:    fp(c * 0.98),
			Close:  c,
			Volume: 1_000_000 + float64(i)*1000,
			VWAP:   fp(c * 1.001),
		})
		day = day.AddDate(0, 0, 1)
		if day.Weekday() == time.Saturday {
			day = day.AddDate(0, 0, 2)
		}
	}
	return bars
}
