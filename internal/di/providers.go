package di

import (
	"context"
	"fmt"
	"time"

	"stockcast/internal/domain/repository"
	domsvc "stockcast/internal/domain/service"
	"stockcast/internal/handler/api"
	mid "stockcast/internal/middleware"
	internalrepo "stockcast/internal/repository"
	svcache "stockcast/internal/service/cache"
	"stockcast/internal/service/massive"
	"stockcast/internal/services/forecast"
	"stockcast/internal/usecase"
	pkgcache "stockcast/pkg/cache"
	pkgch "stockcast/pkg/clickhouse"
	"stockcast/pkg/config"
	pkgkafka "stockcast/pkg/kafka"
	applogger "stockcast/pkg/logger"
	"stockcast/pkg/metrics"
	pkgqueue "stockcast/pkg/queue"
	"stockcast/pkg/server"
)

// ProvideLogger creates the structured application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.daily_bars (
			ticker String,
			date Date,
			open Float64,
			high Nullable(Float64),
			low Nullable(Float64),
			close Float64,
			volume Float64,
			vwap Nullable(Float64),
			created_at DateTime DEFAULT now()
		) ENGINE=ReplacingMergeTree(created_at) ORDER BY (ticker, date)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.daily_movers (
			date Date,
			ticker String,
			percent_change Float64,
			close Float64,
			created_at DateTime DEFAULT now()
		) ENGINE=ReplacingMergeTree(created_at) ORDER BY date`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.predictions (
			date Date,
			seq UInt8,
			ticker String,
			pred_up Nullable(UInt8),
			prob_up Nullable(Float64),
			why String,
			asof DateTime,
			created_at DateTime DEFAULT now()
		) ENGINE=ReplacingMergeTree(created_at) ORDER BY (date, seq)`, db),
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithKeyOrdering(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache creates the Redis connection shared by cache and queue.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCacheService layers an in-process cache over Redis.
func ProvideCacheService(cfg *config.Config, rc *pkgcache.RedisCache) pkgcache.Service {
	return pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize))
}

// ProvideForecastCache creates the forecast read cache, or nil when caching is off.
func ProvideForecastCache(cfg *config.Config, svc pkgcache.Service) *svcache.ForecastCache {
	if !cfg.Cache.Enabled {
		return nil
	}
	return svcache.NewForecastCache(svc, cfg.Cache.RunTTL, cfg.Cache.MoversTTL)
}

// ProvideBarStore creates the ClickHouse daily-bar store.
func ProvideBarStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.CHBarStore {
	s := internalrepo.NewCHBarStore(chClient, cfg.ClickHouse.Database+".daily_bars")
	s.SetLogger(l)
	return s
}

// ProvideBarStorage exposes the bar store as write storage.
func ProvideBarStorage(s *internalrepo.CHBarStore) repository.Storage {
	return s
}

// ProvideHistoryStore exposes the bar store as read history.
func ProvideHistoryStore(s *internalrepo.CHBarStore) repository.HistoryStore {
	return s
}

// ProvideMoverStore creates the ClickHouse daily-mover store.
func ProvideMoverStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.MoverStore {
	s := internalrepo.NewCHMoverStore(chClient, cfg.ClickHouse.Database+".daily_movers")
	s.SetLogger(l)
	return s
}

// ProvidePredictionStore creates the ClickHouse prediction-run store.
func ProvidePredictionStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.PredictionStore {
	s := internalrepo.NewCHPredictionStore(chClient, cfg.ClickHouse.Database+".predictions")
	s.SetLogger(l)
	return s
}

// ProvideBarPublisher creates the Kafka publisher for daily bars.
func ProvideBarPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaBarPublisher(producer, cfg.Kafka.Topic)
}

// ProvideBarSource creates the Massive grouped-daily REST client.
func ProvideBarSource(cfg *config.Config, m repository.Metrics, l *applogger.Logger) repository.BarSource {
	return massive.New(cfg, m, l)
}

// ProvideBarProcessor creates the backend-routing bar processor.
func ProvideBarProcessor(
	pub repository.Publisher,
	store repository.Storage,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.BarProcessor {
	return usecase.NewBarProcessor(pub, store, m, repository.NormalizeBackend(cfg.Backend.Type))
}

// ProvideIngestPipeline creates the batching pipeline between consumer and storage.
func ProvideIngestPipeline(proc *usecase.BarProcessor, m repository.Metrics, cfg *config.Config) *mid.IngestPipeline {
	return mid.NewIngestPipeline(proc, m,
		mid.WithBatchSize(cfg.Backend.BatchSize),
		mid.WithFlushInterval(cfg.Backend.BatchTimeout),
	)
}

// ProvideKafkaBarsHandler registers the handler for the daily-bars topic.
func ProvideKafkaBarsHandler(pipe *mid.IngestPipeline, m repository.Metrics, cfg *config.Config) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.Topic, pipe, m)
}

// ProvideArtifactLoader creates the model artifact loader.
func ProvideArtifactLoader(cfg *config.Config, l *applogger.Logger) domsvc.ArtifactLoader {
	return forecast.NewLoader(cfg.Forecast.ArtifactsDir, l)
}

// ProvideExplainer creates the feature-importance explainer.
func ProvideExplainer() domsvc.Explainer {
	return forecast.NewStatExplainer()
}

// ProvideQueuePublisher creates the refresh-queue publisher, or nil when the queue is off.
func ProvideQueuePublisher(cfg *config.Config, rc *pkgcache.RedisCache, l *applogger.Logger) pkgqueue.QueueService {
	if !cfg.Queue.Enabled {
		return nil
	}
	return pkgqueue.NewRedisPublisher(l, rc.Client())
}

// ProvideIngestService creates the daily ingest use case.
func ProvideIngestService(
	source repository.BarSource,
	proc *usecase.BarProcessor,
	movers repository.MoverStore,
	fc *svcache.ForecastCache,
	q pkgqueue.QueueService,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.IngestService {
	return usecase.NewIngestService(source, proc, movers, fc, q, m, cfg.Forecast.Watchlist, l)
}

// ProvidePredictionService creates the watchlist prediction use case.
func ProvidePredictionService(
	history repository.HistoryStore,
	preds repository.PredictionStore,
	loader domsvc.ArtifactLoader,
	expl domsvc.Explainer,
	fc *svcache.ForecastCache,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.PredictionService {
	return usecase.NewPredictionService(
		history,
		preds,
		loader,
		expl,
		fc,
		cfg.Forecast.Watchlist,
		cfg.Forecast.LookbackDays,
		cfg.Forecast.MinHistoryDays,
		cfg.Forecast.ProbThreshold,
		l,
	)
}

// ProvideReadUseCase creates the forecast read use case. A prediction
// service is wired in so a first read computes instead of 404ing.
func ProvideReadUseCase(
	preds repository.PredictionStore,
	movers repository.MoverStore,
	history repository.HistoryStore,
	fc *svcache.ForecastCache,
	svc *usecase.PredictionService,
	l *applogger.Logger,
) *usecase.ForecastReadUseCase {
	uc := usecase.NewForecastReadUseCase(preds, movers, history, fc, l)
	uc.SetComputeOnMiss(svc)
	return uc
}

// ProvideRefreshJob creates the queued forecast refresh job.
func ProvideRefreshJob(svc *usecase.PredictionService, fc *svcache.ForecastCache, l *applogger.Logger) *usecase.RefreshForecastJob {
	return usecase.NewRefreshForecastJob(svc, fc, l)
}

// ProvideQueueWorker creates the refresh-queue consumer, or nil when the queue is off.
func ProvideQueueWorker(
	cfg *config.Config,
	rc *pkgcache.RedisCache,
	l *applogger.Logger,
	job *usecase.RefreshForecastJob,
) *pkgqueue.RedisQueue {
	if !cfg.Queue.Enabled {
		return nil
	}
	qc := &pkgqueue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	return pkgqueue.NewRedisConsumer(l, qc, rc.Client(), []pkgqueue.Job{job})
}

// ProvideForecastHandler creates the HTTP handler with dependency health checks.
func ProvideForecastHandler(
	l *applogger.Logger,
	reads *usecase.ForecastReadUseCase,
	chClient *pkgch.Client,
	rc *pkgcache.RedisCache,
) *api.ForecastHandler {
	checks := []api.HealthCheck{
		{Name: "clickhouse", Check: chClient.Ping},
		{Name: "redis", Check: func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}},
	}
	return api.NewForecastHandler(l, reads, checks)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	consumer *pkgkafka.Consumer,
	bh *usecase.KafkaBarsHandler,
	producer *pkgkafka.Producer,
	worker *pkgqueue.RedisQueue,
	chClient *pkgch.Client,
	handler *api.ForecastHandler,
	pipe *mid.IngestPipeline,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, l, consumer, bh, producer, worker, chClient)
	app.SetHTTPHandler(handler)
	app.SetBarPipeline(pipe)
	return app
}
