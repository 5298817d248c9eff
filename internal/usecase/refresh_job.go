package usecase

import (
	"context"
	"time"

	svcache "stockcast/internal/service/cache"
	"stockcast/pkg/logger"
	"stockcast/pkg/queue"
)

// RefreshJobType is the queue message type ingest publishes after new
// bars land.
const RefreshJobType = "forecast.refresh"

const refreshLockTTL = 5 * time.Minute

// RefreshPayload carries the ingested date, for logging only; a refresh
// always recomputes from the latest stored history.
type RefreshPayload struct {
	Date string `json:"date"`
}

// RefreshForecastJob re-runs the prediction pass when ingest signals new
// data. A short-lived cache lock keeps concurrent workers from running
// the same refresh twice.
type RefreshForecastJob struct {
	svc    *PredictionService
	cache  *svcache.ForecastCache
	logger *logger.Logger
}

func NewRefreshForecastJob(svc *PredictionService, cache *svcache.ForecastCache, l *logger.Logger) *RefreshForecastJob {
	if l == nil {
		l = logger.Nop()
	}
	return &RefreshForecastJob{svc: svc, cache: cache, logger: l}
}

func (j *RefreshForecastJob) Name() string { return "refresh_forecast" }

func (j *RefreshForecastJob) Type() string { return RefreshJobType }

func (j *RefreshForecastJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RefreshPayload](payload)
	if err != nil {
		return err
	}

	if j.cache != nil {
		ok, err := j.cache.LockRefresh(ctx, refreshLockTTL)
		if err != nil {
			j.logger.Warn("acquire refresh lock", logger.Error(err))
		} else if !ok {
			j.logger.Info("refresh already in progress", logger.String("date", p.Date))
			return nil
		} else {
			defer func() { _ = j.cache.UnlockRefresh(ctx) }()
		}
	}

	j.logger.Info("refreshing forecast", logger.String("date", p.Date))
	_, err = j.svc.Run(ctx)
	return err
}

var _ queue.Job = (*RefreshForecastJob)(nil)
