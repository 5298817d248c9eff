package repository

import (
	"context"
	"errors"
	"time"

	"stockcast/internal/domain/models"
)

// ErrNotFound is returned by stores when no matching record exists.
var ErrNotFound = errors.New("not found")

// BarSource fetches the full-market grouped daily bars for one trading day.
type BarSource interface {
	GroupedDaily(ctx context.Context, date time.Time) ([]models.PriceBar, error)
}

// Storage persists daily bars.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, bar *models.PriceBar) error
	StoreBatch(ctx context.Context, bars []*models.PriceBar) error
	Health(ctx context.Context) error // ping
	Close() error
}

// Publisher ships bars to the message backend.
type Publisher interface {
	Publish(ctx context.Context, bar *models.PriceBar) error
	PublishBatch(ctx context.Context, bars []*models.PriceBar) error
	Close() error
}

// MoverStore persists and lists the per-date biggest-mover records.
type MoverStore interface {
	// Record writes a mover for its date unless one already exists
	// (first write for a date wins).
	Record(ctx context.Context, m *models.DailyMover) error
	// Recent returns up to limit movers, newest date first.
	Recent(ctx context.Context, limit int) ([]models.DailyMover, error)
}

// PredictionStore persists watchlist prediction runs.
type PredictionStore interface {
	StoreRun(ctx context.Context, run *models.PredictionRun) error
	// LatestRun returns the most recent stored run, or ErrNotFound.
	LatestRun(ctx context.Context) (*models.PredictionRun, error)
}

// Metrics records operational counters.
type Metrics interface {
	RecordBarStored(backend, ticker string)
	RecordFetchRetry()
	RecordError(kind string)
	RecordLastClose(ticker string, close float64)
	RecordLatency(op string, seconds float64)
}
