package di

import (
	"stockcast/internal/usecase"
	pkgcache "stockcast/pkg/cache"
	pkgch "stockcast/pkg/clickhouse"
	pkgkafka "stockcast/pkg/kafka"
	applogger "stockcast/pkg/logger"
)

// IngestApp bundles the one-shot daily ingest job with its connections.
type IngestApp struct {
	Logger  *applogger.Logger
	Service *usecase.IngestService

	producer *pkgkafka.Producer
	chClient *pkgch.Client
	redis    *pkgcache.RedisCache
}

// NewIngestApp wires the ingest job bundle.
func NewIngestApp(
	l *applogger.Logger,
	svc *usecase.IngestService,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	redis *pkgcache.RedisCache,
) *IngestApp {
	return &IngestApp{
		Logger:   l,
		Service:  svc,
		producer: producer,
		chClient: chClient,
		redis:    redis,
	}
}

// Close releases the job's connections.
func (a *IngestApp) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.Logger.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.Logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("redis close error", applogger.Error(err))
		}
	}
}

// PredictApp bundles the one-shot prediction job with its connections.
type PredictApp struct {
	Logger  *applogger.Logger
	Service *usecase.PredictionService

	chClient *pkgch.Client
	redis    *pkgcache.RedisCache
}

// NewPredictApp wires the prediction job bundle.
func NewPredictApp(
	l *applogger.Logger,
	svc *usecase.PredictionService,
	chClient *pkgch.Client,
	redis *pkgcache.RedisCache,
) *PredictApp {
	return &PredictApp{
		Logger:   l,
		Service:  svc,
		chClient: chClient,
		redis:    redis,
	}
}

// Close releases the job's connections.
func (a *PredictApp) Close() {
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.Logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("redis close error", applogger.Error(err))
		}
	}
}
