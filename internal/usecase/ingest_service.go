package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"stockcast/internal/domain/models"
	drepo "stockcast/internal/domain/repository"
	svcache "stockcast/internal/service/cache"
	"stockcast/pkg/logger"
	"stockcast/pkg/queue"
	"stockcast/pkg/util"
)

// IngestResult summarizes one ingest run.
type IngestResult struct {
	Date     string             `json:"date"`
	Fetched  int                `json:"fetched"`
	Stored   int                `json:"stored"`
	TopMover *models.DailyMover `json:"top_mover,omitempty"`
}

// IngestService pulls one day of grouped bars, keeps the watchlist rows,
// routes them to the backend and records the day's top mover.
type IngestService struct {
	source    drepo.BarSource
	proc      *BarProcessor
	movers    drepo.MoverStore
	cache     *svcache.ForecastCache
	queue     queue.QueueService
	metrics   drepo.Metrics
	watchlist []string
	logger    *logger.Logger
}

// NewIngestService creates a new IngestService. Cache and queue are
// optional; nil disables invalidation and refresh scheduling.
func NewIngestService(
	source drepo.BarSource,
	proc *BarProcessor,
	movers drepo.MoverStore,
	cache *svcache.ForecastCache,
	q queue.QueueService,
	metrics drepo.Metrics,
	watchlist []string,
	l *logger.Logger,
) *IngestService {
	if l == nil {
		l = logger.Nop()
	}
	wl := make([]string, 0, len(watchlist))
	for _, t := range watchlist {
		wl = append(wl, util.NormalizeTicker(t))
	}
	return &IngestService{
		source:    source,
		proc:      proc,
		movers:    movers,
		cache:     cache,
		queue:     q,
		metrics:   metrics,
		watchlist: wl,
		logger:    l,
	}
}

// Run ingests bars for the given date. A zero date means the previous
// trading day in New York.
func (s *IngestService) Run(ctx context.Context, date time.Time) (*IngestResult, error) {
	if date.IsZero() {
		date = util.PreviousTradingDay(util.NowEastern())
	}
	date = util.DateOnly(date)

	start := time.Now()
	rows, err := s.source.GroupedDaily(ctx, date)
	if err != nil {
		s.metrics.RecordError("ingest_fetch")
		return nil, fmt.Errorf("fetch grouped daily: %w", err)
	}
	if len(rows) == 0 {
		s.metrics.RecordError("ingest_empty")
		return nil, fmt.Errorf("no grouped results for %s", util.FormatDate(date))
	}

	keep := make(map[string]struct{}, len(s.watchlist))
	for _, t := range s.watchlist {
		keep[t] = struct{}{}
	}
	bars := make([]*models.PriceBar, 0, len(s.watchlist))
	for i := range rows {
		if _, ok := keep[rows[i].Ticker]; ok {
			bars = append(bars, &rows[i])
		}
	}

	if err := s.proc.ProcessBatch(ctx, bars); err != nil {
		return nil, err
	}

	mover := pickTopMover(date, bars)
	if mover != nil {
		if err := s.movers.Record(ctx, mover); err != nil {
			s.metrics.RecordError("mover_record")
			return nil, fmt.Errorf("record mover: %w", err)
		}
	}

	// best effort; a stale cache or a missed refresh is not worth failing
	// the run over
	if s.cache != nil {
		if err := s.cache.InvalidateMovers(ctx); err != nil {
			s.logger.Warn("invalidate movers cache", logger.Error(err))
		}
	}
	if s.queue != nil {
		if err := s.queue.PublishMessage(ctx, RefreshJobType, RefreshPayload{Date: util.FormatDate(date)}); err != nil {
			s.logger.Warn("enqueue forecast refresh", logger.Error(err))
		}
	}

	s.metrics.RecordLatency("ingest_run", time.Since(start).Seconds())
	s.logger.Info("ingest complete",
		logger.Date("date", date),
		logger.Int("fetched", len(rows)),
		logger.Int("stored", len(bars)),
		logger.Duration("duration", time.Since(start)),
	)

	return &IngestResult{
		Date:     util.FormatDate(date),
		Fetched:  len(rows),
		Stored:   len(bars),
		TopMover: mover,
	}, nil
}

// pickTopMover returns the bar with the largest absolute open-to-close
// move. Ties keep the earlier row; zero-open rows are skipped.
func pickTopMover(date time.Time, bars []*models.PriceBar) *models.DailyMover {
	var best *models.DailyMover
	var bestAbs float64
	for _, b := range bars {
		if b.Open == 0 {
			continue
		}
		pct := (b.Close - b.Open) / b.Open * 100
		if best == nil || math.Abs(pct) > bestAbs {
			best = &models.DailyMover{
				Date:          date,
				Ticker:        b.Ticker,
				PercentChange: round6(pct),
				Close:         round6(b.Close),
			}
			bestAbs = math.Abs(pct)
		}
	}
	return best
}

func round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}
