package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsStored   *prometheus.CounterVec
	fetchRetries prometheus.Counter
	errorsTotal  *prometheus.CounterVec
	lastClose    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_bars_stored_total",
				Help: "Total number of daily bars written per backend",
			},
			[]string{"backend", "ticker"},
		),
		fetchRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "stockcast_fetch_retries_total",
				Help: "Total number of retried market data requests",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastClose: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_last_close",
				Help: "Last ingested close price for a ticker",
			},
			[]string{"ticker"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordBarStored records one bar written through a backend.
func (r *Recorder) RecordBarStored(backend, ticker string) {
	r.barsStored.WithLabelValues(backend, ticker).Inc()
}

// RecordFetchRetry records a retried upstream request.
func (r *Recorder) RecordFetchRetry() {
	r.fetchRetries.Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastClose records the most recent close for a ticker.
func (r *Recorder) RecordLastClose(ticker string, price float64) {
	r.lastClose.WithLabelValues(ticker).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
