package usecase

import (
	"context"
	"fmt"
	"time"

	"stockcast/internal/domain/models"
	drepo "stockcast/internal/domain/repository"
)

// BarProcessor routes daily bars to the configured backend: straight
// into ClickHouse, or onto Kafka for a downstream consumer.
type BarProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend drepo.Backend
}

// NewBarProcessor creates a new BarProcessor instance.
func NewBarProcessor(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	backend drepo.Backend,
) *BarProcessor {
	return &BarProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Process routes a single bar to the configured backend.
func (p *BarProcessor) Process(ctx context.Context, b *models.PriceBar) error {
	if b == nil {
		return fmt.Errorf("bar is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case drepo.BackendKafka:
		err = p.pub.Publish(ctx, b)
	case drepo.BackendClickHouse:
		err = p.store.Store(ctx, b)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process bar: %w", err)
	}

	p.metrics.RecordBarStored(string(p.backend), b.Ticker)
	p.metrics.RecordLastClose(b.Ticker, b.Close)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	return nil
}

// ProcessBatch routes multiple bars in a batch.
func (p *BarProcessor) ProcessBatch(ctx context.Context, bars []*models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case drepo.BackendKafka:
		err = p.pub.PublishBatch(ctx, bars)
	case drepo.BackendClickHouse:
		err = p.store.StoreBatch(ctx, bars)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, b := range bars {
		p.metrics.RecordBarStored(string(p.backend), b.Ticker)
		p.metrics.RecordLastClose(b.Ticker, b.Close)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

// Close closes underlying resources if available.
func (p *BarProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
