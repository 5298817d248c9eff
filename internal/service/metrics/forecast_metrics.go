package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockcast",
			Subsystem: "forecast",
			Name:      "predictions_total",
			Help:      "Predictions by outcome (up, down, null)",
		},
		[]string{"outcome"},
	)

	NullPredictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockcast",
			Subsystem: "forecast",
			Name:      "null_predictions_total",
			Help:      "Null predictions by reason",
		},
		[]string{"reason"},
	)

	ExplainerFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stockcast",
			Subsystem: "forecast",
			Name:      "explainer_fallbacks_total",
			Help:      "Rationales that fell back to the generic wording",
		},
	)

	ArtifactLoadSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "stockcast",
			Subsystem: "forecast",
			Name:      "artifact_load_seconds",
			Help:      "Time spent loading model artifacts from disk",
			Buckets:   prometheus.DefBuckets,
		},
	)

	ReadLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stockcast",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of read endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ReadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockcast",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by read endpoint",
		},
		[]string{"endpoint"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockcast",
			Subsystem: "api",
			Name:      "cache_hits_total",
			Help:      "Response cache hits by endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			PredictionsTotal,
			NullPredictions,
			ExplainerFallbacks,
			ArtifactLoadSeconds,
			ReadLatency,
			ReadErrors,
			CacheHits,
		)
	})
}
