package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	pkgch "stockcast/pkg/clickhouse"
	"stockcast/pkg/config"
	xhttp "stockcast/pkg/http"
	pkgkafka "stockcast/pkg/kafka"
	applogger "stockcast/pkg/logger"
	pkgqueue "stockcast/pkg/queue"
)

// BarPipeline is the batching stage between the bar consumer and storage.
type BarPipeline interface {
	Start(ctx context.Context)
	Stop()
}

// App encapsulates the API process lifecycle: HTTP server, optional Kafka
// bar consumer, optional refresh queue worker, graceful shutdown.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	consumer    *pkgkafka.Consumer
	barsHandler pkgkafka.MessageHandler
	producer    *pkgkafka.Producer
	queue       *pkgqueue.RedisQueue
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	pipeline    BarPipeline
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	consumer *pkgkafka.Consumer,
	barsHandler pkgkafka.MessageHandler,
	producer *pkgkafka.Producer,
	queue *pkgqueue.RedisQueue,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:         cfg,
		logger:      l,
		consumer:    consumer,
		barsHandler: barsHandler,
		producer:    producer,
		queue:       queue,
		chClient:    chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetBarPipeline allows DI to inject the consumer-side batching pipeline.
func (a *App) SetBarPipeline(p BarPipeline) { a.pipeline = p }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	// Ship aggregated error logs to Kafka when an ops topic is configured.
	if a.producer != nil && a.cfg.Logging.ErrorsTopic != "" {
		l.AttachCollector(&applogger.CollectorConfig{
			Topic:     a.cfg.Logging.ErrorsTopic,
			Publisher: a.producer,
		})
	}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithRequestLogger(l, a.cfg.Server.SlowRequestThreshold),
	)

	// Bar consumer runs only when the ingest side publishes through Kafka.
	if a.cfg.Backend.Type == "kafka" && a.consumer != nil && a.barsHandler != nil {
		if a.pipeline != nil {
			a.pipeline.Start(ctx)
		}
		a.consumer.RegisterHandler(a.barsHandler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.barsHandler.Topic()))
	}

	// Refresh worker picks up jobs enqueued after each ingest run.
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			l.Error("queue start error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("api started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger
	l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Drain buffered bars once the consumer has stopped feeding it.
	if a.pipeline != nil {
		a.pipeline.Stop()
	}

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("queue stop error", applogger.Error(err))
		}
	}

	// Flush any pending aggregated errors before the producer goes away.
	l.DetachCollector()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
