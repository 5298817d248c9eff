package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockcast/internal/domain/models"
	domrepo "stockcast/internal/domain/repository"
)

// BatchProc is the downstream sink the pipeline flushes bar batches into.
type BatchProc interface {
	ProcessBatch(ctx context.Context, bars []*models.PriceBar) error
}

// IngestPipeline sits between the bar consumer and storage. It validates
// incoming bars, groups them into batches, and flushes on size or on a
// timer; failed flushes are kept and retried with backoff so a storage
// blip does not lose a day's rows.
type IngestPipeline struct {
	proc       BatchProc
	metrics    domrepo.Metrics
	batchSize  int
	flushEvery time.Duration
	maxPending int

	bufCh   chan *models.PriceBar
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex

	// flush-loop state, touched only by the flush goroutine
	pending []*models.PriceBar
	backoff time.Duration
}

type PipelineOption func(*IngestPipeline)

// WithBatchSize sets how many bars trigger an immediate flush.
func WithBatchSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval sets the time-based flush trigger.
func WithFlushInterval(d time.Duration) PipelineOption {
	return func(p *IngestPipeline) {
		if d > 0 {
			p.flushEvery = d
		}
	}
}

// WithQueueSize sets the intake buffer size.
func WithQueueSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.PriceBar, n)
		}
	}
}

// NewIngestPipeline creates a pipeline flushing into proc.
func NewIngestPipeline(proc BatchProc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:       proc,
		metrics:    metrics,
		batchSize:  200,
		flushEvery: 2 * time.Second,
		bufCh:      make(chan *models.PriceBar, 1000),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		backoff:    50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	// a stalled sink may hold several batches before rows get dropped
	p.maxPending = p.batchSize * 4
	return p
}

// Start launches the background flush loop.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		ticker := time.NewTicker(p.flushEvery)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				p.drain(ctx)
				return
			case b := <-p.bufCh:
				p.pending = append(p.pending, b)
				if len(p.pending) >= p.batchSize {
					p.flush(ctx)
				}
			case <-ticker.C:
				p.flush(ctx)
			}
		}
	}()
}

// Stop flushes whatever is queued and stops the loop.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}

// Submit validates and queues one bar. It never blocks; a full intake
// buffer rejects the bar so the consumer can retry the message.
func (p *IngestPipeline) Submit(ctx context.Context, b *models.PriceBar) error {
	if err := validateBar(b); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	select {
	case p.bufCh <- b:
		return nil
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return fmt.Errorf("pipeline buffer full")
	}
}

func (p *IngestPipeline) drain(ctx context.Context) {
	for {
		select {
		case b := <-p.bufCh:
			p.pending = append(p.pending, b)
		default:
			p.flush(ctx)
			return
		}
	}
}

func (p *IngestPipeline) flush(ctx context.Context) {
	if len(p.pending) == 0 {
		return
	}
	start := time.Now()
	if err := p.proc.ProcessBatch(ctx, p.pending); err != nil {
		if p.backoff < 2*time.Second {
			p.backoff *= 2
		}
		p.metrics.RecordError("pipeline_flush")
		time.Sleep(p.backoff)
		// keep the batch for the next trigger, but never grow without bound
		if len(p.pending) > p.maxPending {
			p.metrics.RecordError("pipeline_buffer_drop")
			p.pending = p.pending[len(p.pending)-p.maxPending:]
		}
		return
	}
	p.backoff = 50 * time.Millisecond
	p.metrics.RecordLatency("pipeline_flush", time.Since(start).Seconds())
	p.pending = p.pending[:0]
}

func validateBar(b *models.PriceBar) error {
	if b == nil {
		return fmt.Errorf("bar nil")
	}
	if b.Ticker == "" {
		return fmt.Errorf("ticker empty")
	}
	if b.Date.IsZero() {
		return fmt.Errorf("date missing")
	}
	if b.Open < 0 || b.Close < 0 || b.Volume < 0 {
		return fmt.Errorf("negative price/volume")
	}
	return nil
}
