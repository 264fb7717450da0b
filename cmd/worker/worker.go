package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/septivank/running-hours-ledger/internal/anomaly"
	"github.com/septivank/running-hours-ledger/internal/cache"
	"github.com/septivank/running-hours-ledger/internal/config"
	"github.com/septivank/running-hours-ledger/internal/db"
	"github.com/septivank/running-hours-ledger/internal/ledger"
	"github.com/septivank/running-hours-ledger/internal/mq"
	"github.com/septivank/running-hours-ledger/internal/repository"
	"github.com/septivank/running-hours-ledger/internal/service"
	"github.com/septivank/running-hours-ledger/internal/utilization"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startWorker(
	lc fx.Lifecycle,
	conn *mq.Connection,
	publisher *mq.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
	processor *service.ProcessorService,
) (*mq.Consumer, error) {
	// cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:     conn,
		Queue:          cfg.RabbitMQ.CommandQueue,
		DLQQueue:       cfg.RabbitMQ.DLQQueue,
		Exchange:       cfg.RabbitMQ.CommandExchange,
		RoutingKey:     cfg.RabbitMQ.CommandRoutingKey,
		PrefetchCount:  cfg.RabbitMQ.PrefetchCount,
		HandleTimeout:  cfg.RabbitMQ.HandleTimeout(),
		Logger:         logger,
		MessageHandler: processor.ProcessMessage,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting worker consumer",
				zap.String("queue", cfg.RabbitMQ.CommandQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			if err := publisher.Close(); err != nil {
				logger.Error("failed to close publisher", zap.Error(err))
				return err
			}
			logger.Info("worker stopped gracefully")
			return nil
		},
	})

	return consumer, nil
}

// startCacheSweeper drops expired utilization rates on a schedule so idle
// caches do not hold stale entries
func startCacheSweeper(lc fx.Lifecycle, rates *cache.UtilizationRateCache, cfg *config.Config, logger *zap.Logger) error {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(cfg.Ledger.CacheSweepSchedule, func() {
		if rates.Sweep() {
			logger.Debug("expired utilization rate cache cleared")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cache sweep %q: %w", cfg.Ledger.CacheSweepSchedule, err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			scheduler.Start()
			logger.Info("cache sweeper started", zap.String("schedule", cfg.Ledger.CacheSweepSchedule))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-scheduler.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideUtilizationCache creates the utilization rate cache shared by the ledger and the sweeper
func ProvideUtilizationCache(cfg *config.Config) *cache.UtilizationRateCache {
	return cache.NewUtilizationRateCache(cfg.Ledger.CacheTTL(), time.Now)
}

// ProvideLedger creates the running hours ledger over the repository
func ProvideLedger(
	repo *repository.Repository,
	rates *cache.UtilizationRateCache,
	cfg *config.Config,
	logger *zap.Logger,
) (*ledger.Ledger, error) {
	strategy, err := utilization.ByName(cfg.Ledger.UtilizationStrategy)
	if err != nil {
		return nil, err
	}
	return ledger.New(repo, rates, strategy, logger,
		ledger.WithUtilizationWindow(cfg.Ledger.UtilizationWindow()),
		ledger.WithBulkWorkers(cfg.Ledger.BulkWorkers),
	), nil
}

// ProvideAnomalyDetector creates a new anomaly detector instance
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.MaxHoursPerDay)
}

// ProvidePublisher creates a new publisher instance
func ProvidePublisher(conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	return mq.NewPublisher(mq.PublisherConfig{
		Connection:         conn,
		Exchange:           cfg.RabbitMQ.EventExchange,
		UpdatedRoutingKey:  cfg.RabbitMQ.UpdatedRoutingKey,
		RejectedRoutingKey: cfg.RabbitMQ.RejectedRoutingKey,
		Logger:             logger,
	})
}

// ProvideProcessorService creates a new processor service instance
func ProvideProcessorService(
	l *ledger.Ledger,
	publisher *mq.Publisher,
	detector *anomaly.Detector,
	logger *zap.Logger,
) *service.ProcessorService {
	return service.NewProcessorService(l, publisher, detector, logger)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	if err := cfg.RequireRabbitMQ(); err != nil {
		return nil, err
	}
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL, cfg.ServiceName)
}
