//go:build wireinject
// +build wireinject

package di

import (
	"stockcast/pkg/config"
	"stockcast/pkg/server"

	"github.com/google/wire"
)

// InitializeAPI wires up the long-running API server: HTTP reads, the Kafka
// consumer path into ClickHouse, and the queue worker that refreshes forecasts.
// Wire will generate the implementation of this function.
func InitializeAPI(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideForecastCache,

		// Repositories
		ProvideBarStore,
		ProvideBarStorage,
		ProvideHistoryStore,
		ProvideMoverStore,
		ProvidePredictionStore,
		ProvideBarPublisher,

		// Forecast components
		ProvideArtifactLoader,
		ProvideExplainer,

		// Use cases
		ProvideBarProcessor,
		ProvideIngestPipeline,
		ProvideKafkaBarsHandler,
		ProvidePredictionService,
		ProvideReadUseCase,
		ProvideRefreshJob,
		ProvideQueueWorker,

		// HTTP
		ProvideForecastHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeIngest wires up the one-shot daily ingest job.
func InitializeIngest(cfg *config.Config) (*IngestApp, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideForecastCache,

		// Repositories
		ProvideBarStore,
		ProvideBarStorage,
		ProvideMoverStore,
		ProvideBarPublisher,
		ProvideBarSource,

		// Use cases
		ProvideBarProcessor,
		ProvideQueuePublisher,
		ProvideIngestService,

		NewIngestApp,
	)
	return &IngestApp{}, nil
}

// InitializePredict wires up the one-shot prediction job.
func InitializePredict(cfg *config.Config) (*PredictApp, error) {
	wire.Build(
		// Ambient
		ProvideLogger,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideForecastCache,

		// Repositories
		ProvideBarStore,
		ProvideHistoryStore,
		ProvidePredictionStore,

		// Forecast components
		ProvideArtifactLoader,
		ProvideExplainer,

		// Use cases
		ProvidePredictionService,

		NewPredictApp,
	)
	return &PredictApp{}, nil
}
