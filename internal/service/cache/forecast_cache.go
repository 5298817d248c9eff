package cache

import (
	"context"
	"fmt"
	"time"

	"stockcast/internal/domain/models"
	pkgcache "stockcast/pkg/cache"
)

// Key layout for the read API's response cache. All keys live under one
// prefix so a deployment can flush them together.
const (
	runKey        = "forecast:run:latest"
	moversKeyFmt  = "forecast:movers:%d"
	moversPattern = "forecast:movers:*"
	refreshLock   = "forecast:refresh:lock"
)

// ErrMiss reports that a key was absent. Callers usually fall through to
// the store on a miss.
var ErrMiss = pkgcache.ErrCacheMiss

// ForecastCache is the typed cache for prediction runs and mover lists,
// keyed and aged per endpoint.
type ForecastCache struct {
	svc       pkgcache.Service
	runTTL    time.Duration
	moversTTL time.Duration
}

func NewForecastCache(svc pkgcache.Service, runTTL, moversTTL time.Duration) *ForecastCache {
	return &ForecastCache{svc: svc, runTTL: runTTL, moversTTL: moversTTL}
}

func (c *ForecastCache) Run(ctx context.Context) (*models.PredictionRun, error) {
	var run models.PredictionRun
	if err := c.svc.Get(ctx, runKey, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *ForecastCache) SetRun(ctx context.Context, run *models.PredictionRun) error {
	return c.svc.Set(ctx, runKey, run, c.runTTL)
}

func (c *ForecastCache) InvalidateRun(ctx context.Context) error {
	return c.svc.Delete(ctx, runKey)
}

func (c *ForecastCache) Movers(ctx context.Context, days int) ([]models.DailyMover, error) {
	var items []models.DailyMover
	if err := c.svc.Get(ctx, fmt.Sprintf(moversKeyFmt, days), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *ForecastCache) SetMovers(ctx context.Context, days int, items []models.DailyMover) error {
	return c.svc.Set(ctx, fmt.Sprintf(moversKeyFmt, days), items, c.moversTTL)
}

// InvalidateMovers drops every cached mover window; ingest calls this
// after writing a new day.
func (c *ForecastCache) InvalidateMovers(ctx context.Context) error {
	return c.svc.DeleteByPattern(ctx, moversPattern)
}

// LockRefresh claims the single-flight lock for a cache refresh job.
func (c *ForecastCache) LockRefresh(ctx context.Context, ttl time.Duration) (bool, error) {
	return c.svc.TryLock(ctx, refreshLock, ttl)
}

func (c *ForecastCache) UnlockRefresh(ctx context.Context) error {
	return c.svc.Unlock(ctx, refreshLock)
}
