package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockcast/internal/domain/models"
	drepo "stockcast/internal/domain/repository"
	domsvc "stockcast/internal/domain/service"
	svcache "stockcast/internal/service/cache"
	"stockcast/internal/service/metrics"
	"stockcast/internal/services/features"
	"stockcast/pkg/logger"
	"stockcast/pkg/util"
)

const (
	whyNoHistory     = "Not enough recent history yet."
	whyMissingValues = "Missing feature values for today."
)

// PredictionService runs one forecast pass: per watchlist ticker it loads
// recent bars, builds features and scores the latest row. Tickers that
// cannot be scored get a null prediction carrying the reason; the
// classifier is never called on an incomplete vector.
type PredictionService struct {
	history   drepo.HistoryStore
	preds     drepo.PredictionStore
	loader    domsvc.ArtifactLoader
	expl      domsvc.Explainer
	cache     *svcache.ForecastCache
	watchlist []string
	lookback  int
	minBars   int
	threshold float64
	timeout   time.Duration
	logger    *logger.Logger
}

// NewPredictionService creates a new PredictionService. Cache is optional.
func NewPredictionService(
	history drepo.HistoryStore,
	preds drepo.PredictionStore,
	loader domsvc.ArtifactLoader,
	expl domsvc.Explainer,
	cache *svcache.ForecastCache,
	watchlist []string,
	lookbackDays int,
	minHistoryDays int,
	probThreshold float64,
	l *logger.Logger,
) *PredictionService {
	if l == nil {
		l = logger.Nop()
	}
	wl := make([]string, 0, len(watchlist))
	for _, t := range watchlist {
		wl = append(wl, util.NormalizeTicker(t))
	}
	return &PredictionService{
		history:   history,
		preds:     preds,
		loader:    loader,
		expl:      expl,
		cache:     cache,
		watchlist: wl,
		lookback:  lookbackDays,
		minBars:   minHistoryDays,
		threshold: probThreshold,
		timeout:   30 * time.Second,
		logger:    l,
	}
}

// Run scores every watchlist ticker, persists the run and refreshes the
// cached copy. The returned run lists predictions in watchlist order.
func (s *PredictionService) Run(ctx context.Context) (*models.PredictionRun, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	clf, schema, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}

	asof := time.Now().UTC()
	from := util.DateOnly(asof).AddDate(0, 0, -s.lookback)

	preds := make([]models.Prediction, len(s.watchlist))
	var wg sync.WaitGroup
	for i, ticker := range s.watchlist {
		wg.Add(1)
		go func() {
			defer wg.Done()
			preds[i] = s.predictOne(ctx, clf, schema, ticker, from)
		}()
	}
	wg.Wait()

	run := &models.PredictionRun{AsOf: asof, Predictions: preds}
	if err := s.preds.StoreRun(ctx, run); err != nil {
		return nil, fmt.Errorf("store prediction run: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetRun(ctx, run); err != nil {
			s.logger.Warn("cache prediction run", logger.Error(err))
		}
	}

	s.logger.Info("prediction run complete",
		logger.Int("tickers", len(preds)),
		logger.Duration("duration", time.Since(start)),
	)
	return run, nil
}

func (s *PredictionService) predictOne(ctx context.Context, clf domsvc.Classifier, schema models.FeatureSchema, ticker string, from time.Time) models.Prediction {
	bars, err := s.history.History(ctx, ticker, from)
	if err != nil {
		s.logger.Warn("load history", logger.String("ticker", ticker), logger.Error(err))
		metrics.NullPredictions.WithLabelValues("history_error").Inc()
		return models.Prediction{Ticker: ticker, Why: whyNoHistory}
	}
	if len(bars) < s.minBars {
		metrics.NullPredictions.WithLabelValues("no_history").Inc()
		return models.Prediction{Ticker: ticker, Why: whyNoHistory}
	}

	table := features.Build(ticker, bars, s.watchlist)
	vec, missing := features.AlignLatest(table, schema)
	if missing {
		metrics.NullPredictions.WithLabelValues("missing_features").Inc()
		return models.Prediction{Ticker: ticker, Why: whyMissingValues}
	}

	prob, err := clf.ProbUp(vec)
	if err != nil {
		s.logger.Warn("score features", logger.String("ticker", ticker), logger.Error(err))
		metrics.NullPredictions.WithLabelValues("classifier_error").Inc()
		return models.Prediction{Ticker: ticker, Why: whyMissingValues}
	}

	up := prob >= s.threshold
	why := s.expl.Explain(ctx, schema, clf.Importances(), table)
	outcome := "down"
	if up {
		outcome = "up"
	}
	metrics.PredictionsTotal.WithLabelValues(outcome).Inc()

	p := round6(prob)
	return models.Prediction{Ticker: ticker, PredUp: &up, ProbUp: &p, Why: why}
}
