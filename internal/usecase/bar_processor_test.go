package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcast/internal/domain/models"
	drepo "stockcast/internal/domain/repository"
)

func TestProcessRoutesByBackend(t *testing.T) {
	bar := &models.PriceBar{Ticker: "NVDA", Open: 100, Close: 101, Volume: 5}

	t.Run("clickhouse", func(t *testing.T) {
		store := &fakeStorage{}
		pub := &fakePublisher{}
		p := NewBarProcessor(pub, store, newSpyMetrics(), drepo.BackendClickHouse)

		require.NoError(t, p.Process(context.Background(), bar))
		assert.Len(t, store.stored, 1)
		assert.Empty(t, pub.published)
	})

	t.Run("kafka", func(t *testing.T) {
		store := &fakeStorage{}
		pub := &fakePublisher{}
		p := NewBarProcessor(pub, store, newSpyMetrics(), drepo.BackendKafka)

		require.NoError(t, p.Process(context.Background(), bar))
		assert.Len(t, pub.published, 1)
		assert.Empty(t, store.stored)
	})

	t.Run("unknown", func(t *testing.T) {
		p := NewBarProcessor(&fakePublisher{}, &fakeStorage{}, newSpyMetrics(), drepo.Backend("redis"))

		err := p.Process(context.Background(), bar)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown backend")
	})
}

func TestProcessNilBar(t *testing.T) {
	p := NewBarProcessor(&fakePublisher{}, &fakeStorage{}, newSpyMetrics(), drepo.BackendClickHouse)
	assert.Error(t, p.Process(context.Background(), nil))
}

func TestProcessBatch(t *testing.T) {
	bars := []*models.PriceBar{
		{Ticker: "NVDA", Open: 100, Close: 101, Volume: 5},
		{Ticker: "AAPL", Open: 200, Close: 199, Volume: 7},
	}

	store := &fakeStorage{}
	m := newSpyMetrics()
	p := NewBarProcessor(&fakePublisher{}, store, m, drepo.BackendClickHouse)

	require.NoError(t, p.ProcessBatch(context.Background(), bars))
	assert.Equal(t, 1, store.batches)
	assert.Len(t, store.stored, 2)
	assert.Equal(t, []string{"clickhouse/NVDA", "clickhouse/AAPL"}, m.stored)

	// empty batch is a no-op
	require.NoError(t, p.ProcessBatch(context.Background(), nil))
	assert.Equal(t, 1, store.batches)
}

func TestProcessRecordsErrorMetric(t *testing.T) {
	store := &fakeStorage{err: assert.AnError}
	m := newSpyMetrics()
	p := NewBarProcessor(&fakePublisher{}, store, m, drepo.BackendClickHouse)

	err := p.Process(context.Background(), &models.PriceBar{Ticker: "NVDA", Open: 1, Close: 1})
	require.Error(t, err)
	assert.Equal(t, 1, m.errorCount("process"))
}
