package repository

import (
	"context"
	"time"

	"stockcast/internal/domain/models"
)

// HistoryStore provides read-only access to the per-ticker daily bar series.
type HistoryStore interface {
	// History returns bars for ticker with date >= from, ascending by date.
	History(ctx context.Context, ticker string, from time.Time) ([]models.PriceBar, error)
	// LatestN returns the last n bars for ticker, ascending by date.
	LatestN(ctx context.Context, ticker string, n int) ([]models.PriceBar, error)
}
