package usecase

import (
	"context"
	"errors"
	"fmt"

	"stockcast/internal/domain/models"
	domrepo "stockcast/internal/domain/repository"
	svcache "stockcast/internal/service/cache"
	"stockcast/internal/service/metrics"
	"stockcast/pkg/logger"
	"stockcast/pkg/util"
)

// RunComputer produces a fresh prediction run. PredictionService satisfies it.
type RunComputer interface {
	Run(ctx context.Context) (*models.PredictionRun, error)
}

// ForecastReadUseCase serves the read API: latest prediction run, recent
// movers and per-ticker bar history. Runs and movers are cached; history
// reads go straight to the store.
type ForecastReadUseCase struct {
	preds   domrepo.PredictionStore
	movers  domrepo.MoverStore
	history domrepo.HistoryStore
	cache   *svcache.ForecastCache
	compute RunComputer
	logger  *logger.Logger
}

func NewForecastReadUseCase(
	preds domrepo.PredictionStore,
	movers domrepo.MoverStore,
	history domrepo.HistoryStore,
	cache *svcache.ForecastCache,
	l *logger.Logger,
) *ForecastReadUseCase {
	if l == nil {
		l = logger.Nop()
	}
	return &ForecastReadUseCase{preds: preds, movers: movers, history: history, cache: cache, logger: l}
}

// SetComputeOnMiss makes LatestPredictions compute a fresh run when none has
// been stored yet, instead of reporting not-found.
func (uc *ForecastReadUseCase) SetComputeOnMiss(c RunComputer) { uc.compute = c }

// LatestPredictions returns the most recent run: cached copy first, then the
// store, then a fresh computation when a computer is wired. Without one,
// domrepo.ErrNotFound means no run has been stored yet.
func (uc *ForecastReadUseCase) LatestPredictions(ctx context.Context) (*models.PredictionRun, error) {
	if uc.cache != nil {
		if run, err := uc.cache.Run(ctx); err == nil {
			metrics.CacheHits.WithLabelValues("predictions").Inc()
			return run, nil
		}
	}

	run, err := uc.preds.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) && uc.compute != nil {
			uc.logger.Info("no stored prediction run, computing")
			return uc.compute.Run(ctx)
		}
		return nil, err
	}
	if uc.cache != nil {
		if err := uc.cache.SetRun(ctx, run); err != nil {
			uc.logger.Warn("cache prediction run", logger.Error(err))
		}
	}
	return run, nil
}

type MoversParams struct {
	Days int
}

type MoverItem struct {
	Date          string  `json:"date"`
	Ticker        string  `json:"ticker"`
	PercentChange float64 `json:"percent_change"`
	Close         float64 `json:"close"`
}

type MoversResult struct {
	Days  int         `json:"days"`
	Items []MoverItem `json:"items"`
}

// RecentMovers returns the top-mover record for each of the last N
// recorded dates, newest first.
func (uc *ForecastReadUseCase) RecentMovers(ctx context.Context, p MoversParams) (*MoversResult, error) {
	if p.Days <= 0 {
		p.Days = 30
	}
	if p.Days > 365 {
		p.Days = 365
	}

	if uc.cache != nil {
		if items, err := uc.cache.Movers(ctx, p.Days); err == nil {
			metrics.CacheHits.WithLabelValues("movers").Inc()
			return moversResult(p.Days, items), nil
		}
	}

	items, err := uc.movers.Recent(ctx, p.Days)
	if err != nil {
		return nil, fmt.Errorf("recent movers: %w", err)
	}
	if uc.cache != nil {
		if err := uc.cache.SetMovers(ctx, p.Days, items); err != nil {
			uc.logger.Warn("cache movers", logger.Error(err))
		}
	}
	return moversResult(p.Days, items), nil
}

func moversResult(days int, movers []models.DailyMover) *MoversResult {
	items := make([]MoverItem, 0, len(movers))
	for _, m := range movers {
		items = append(items, MoverItem{
			Date:          util.FormatDate(m.Date),
			Ticker:        m.Ticker,
			PercentChange: m.PercentChange,
			Close:         m.Close,
		})
	}
	return &MoversResult{Days: days, Items: items}
}

type HistoryParams struct {
	Ticker string
	Days   int
}

type HistoryBar struct {
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  float64  `json:"close"`
	Volume float64  `json:"volume"`
	VWAP   *float64 `json:"vwap"`
}

type HistoryResult struct {
	Ticker string       `json:"ticker"`
	Days   int          `json:"days"`
	Count  int          `json:"count"`
	Bars   []HistoryBar `json:"bars"`
}

// TickerHistory returns up to N most recent bars for one ticker, oldest
// first. A ticker with no stored bars yields an empty list.
func (uc *ForecastReadUseCase) TickerHistory(ctx context.Context, p HistoryParams) (*HistoryResult, error) {
	ticker := util.NormalizeTicker(p.Ticker)
	if ticker == "" {
		return nil, fmt.Errorf("ticker required")
	}
	if p.Days <= 0 {
		p.Days = 60
	}
	if p.Days > 365 {
		p.Days = 365
	}

	bars, err := uc.history.LatestN(ctx, ticker, p.Days)
	if err != nil {
		return nil, fmt.Errorf("ticker history: %w", err)
	}

	out := make([]HistoryBar, 0, len(bars))
	for _, b := range bars {
		out = append(out, HistoryBar{
			Date:   util.FormatDate(b.Date),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
			VWAP:   b.VWAP,
		})
	}
	return &HistoryResult{Ticker: ticker, Days: p.Days, Count: len(out), Bars: out}, nil
}
