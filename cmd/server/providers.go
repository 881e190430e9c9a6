package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/septivank/waterlevel-monitor/internal/api"
	"github.com/septivank/waterlevel-monitor/internal/config"
	"github.com/septivank/waterlevel-monitor/internal/db"
	"github.com/septivank/waterlevel-monitor/internal/metrics"
	"github.com/septivank/waterlevel-monitor/internal/mq"
	"github.com/septivank/waterlevel-monitor/internal/repository"
	"github.com/septivank/waterlevel-monitor/internal/service"
	"github.com/septivank/waterlevel-monitor/internal/source"
	"github.com/septivank/waterlevel-monitor/internal/status"
	"github.com/septivank/waterlevel-monitor/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideStore opens Postgres, or falls back to the in-memory store when no
// DATABASE_URL is configured.
func ProvideStore(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (repository.Store, error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, readings are kept in memory and lost on restart")
		return repository.NewMemoryStore(), nil
	}
	pool, err := db.NewPool(lc, logger, cfg.Database.URL, cfg.Database.AutoMigrate)
	if err != nil {
		return nil, err
	}
	return repository.NewPostgresStore(pool), nil
}

func ProvideClassifier(cfg *config.Config) (*status.Classifier, error) {
	return status.NewClassifier(cfg.Thresholds.WarningCM, cfg.Thresholds.CriticalCM)
}

func ProvideValidator(cfg *config.Config) *validator.Validator {
	return validator.NewValidator(cfg.Validation.MaxFutureSkew)
}

func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}

// ProvideSourceAdapter selects the external source variant once at start-up.
func ProvideSourceAdapter(
	cfg *config.Config,
	classifier *status.Classifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*source.Adapter, error) {
	src, err := source.Select(cfg.Source)
	if err != nil {
		return nil, err
	}
	logger.Info("external reading source selected",
		zap.String("source", src.Kind()),
		zap.String("allowed_device", cfg.Source.AllowedDevice),
		zap.Duration("fetch_timeout", cfg.Source.FetchTimeout),
	)
	return source.NewAdapter(source.AdapterConfig{
		Source:        src,
		AllowedDevice: cfg.Source.AllowedDevice,
		Classifier:    classifier,
		Timeout:       cfg.Source.FetchTimeout,
		Metrics:       m,
		Logger:        logger,
	}), nil
}

// ProvideMQConnection returns nil when no broker is configured.
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	if !cfg.RabbitMQ.Enabled() {
		logger.Info("RABBITMQ_URL not set, events and queue ingest are disabled")
		return nil, nil
	}
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

func ProvideEventPublisher(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
) (service.EventPublisher, error) {
	if conn == nil {
		return mq.NopPublisher{}, nil
	}
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	return mq.NewEventPublisher(publisher, cfg.RabbitMQ.ReadingRoutingKey, cfg.RabbitMQ.SyncRoutingKey), nil
}

func ProvideReadingService(
	store repository.Store,
	classifier *status.Classifier,
	v *validator.Validator,
	adapter *source.Adapter,
	publisher service.EventPublisher,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *service.ReadingService {
	return service.NewReadingService(service.Deps{
		Store:      store,
		Classifier: classifier,
		Validator:  v,
		Fetcher:    adapter,
		Publisher:  publisher,
		Metrics:    m,
		Limits:     cfg.Limits,
		Logger:     logger,
	})
}

func ProvideHandler(svc *service.ReadingService, cfg *config.Config, logger *zap.Logger) *api.Handler {
	return api.NewHandler(svc, cfg.ServiceName, logger)
}

func startHTTPServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	handler *api.Handler,
	m *metrics.Metrics,
	logger *zap.Logger,
) {
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewRouter(handler, m.Handler(), logger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return err
			}
			logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down http server")
			return server.Shutdown(ctx)
		},
	})
}

// startIngestConsumer consumes raw readings from the ingest queue when a
// broker is configured.
func startIngestConsumer(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	svc *service.ReadingService,
) error {
	if conn == nil {
		return nil
	}

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:    conn,
		Queue:         cfg.RabbitMQ.IngestQueue,
		DLQQueue:      cfg.RabbitMQ.DLQQueue,
		Exchange:      cfg.RabbitMQ.IngestExchange,
		RoutingKey:    cfg.RabbitMQ.IngestRoutingKey,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		Logger:        logger,
		Handler:       svc.ProcessMessage,
	})
	if err != nil {
		return err
	}

	// Cancelled on stop so the consuming goroutine exits before the
	// connection closes.
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	consumer.RegisterLifecycle(lc, ctx)
	return nil
}
