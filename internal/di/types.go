// Package di wires the service together. NewContainer is the hand-written
// construction path; wire.go describes the same provider graph for
// github.com/google/wire.
package di

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/config"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/breaker"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/cache"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/concurrency"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/events"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/observability"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/replica"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/repository/mappings"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/service/analytics"
)

// Container holds the application dependencies and their cleanups.
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Collector *observability.Collector // nil when metrics are disabled
	Tracer    *observability.TracerProvider

	Store    *cache.Store
	Breaker  *breaker.CircuitBreaker
	Executor replica.Executor
	Batches  *concurrency.BatchProcessor
	Tables   *mappings.CachedSource
	Bus      *events.RedisBus // nil when Redis is disabled

	Service    *analytics.Service
	Router     http.Handler
	CloudWatch *observability.CloudWatchReporter // nil when disabled

	cleanups []func()
}

func provideContainer(
	cfg *config.Config,
	logger *zap.Logger,
	collector *observability.Collector,
	tp *observability.TracerProvider,
	store *cache.Store,
	cb *breaker.CircuitBreaker,
	exec replica.Executor,
	batches *concurrency.BatchProcessor,
	tables *mappings.CachedSource,
	bus *events.RedisBus,
	svc *analytics.Service,
	router http.Handler,
	cw *observability.CloudWatchReporter,
) *Container {
	return &Container{
		Config:     cfg,
		Logger:     logger,
		Collector:  collector,
		Tracer:     tp,
		Store:      store,
		Breaker:    cb,
		Executor:   exec,
		Batches:    batches,
		Tables:     tables,
		Bus:        bus,
		Service:    svc,
		Router:     router,
		CloudWatch: cw,
	}
}

// Start launches the background work: the cache sweep, the invalidation
// subscriber, the CloudWatch reporter and a best-effort warm-up of the
// table counts. Everything stops with ctx.
func (c *Container) Start(ctx context.Context) {
	c.Store.Start(ctx)
	if c.Bus != nil {
		go func() {
			if err := c.Bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.Logger.Error("Invalidation subscriber stopped", zap.Error(err))
			}
		}()
	}
	if c.CloudWatch != nil {
		go c.CloudWatch.Run(ctx)
	}
	go c.Service.WarmTableCounts(ctx)
}

// ApplyConfig hot-applies the parts of a reloaded configuration that can
// change at runtime. Pool sizes, breaker thresholds and the stats batch
// size need a restart.
func (c *Container) ApplyConfig(old, updated *config.Config) {
	c.Batches.UpdateConfig(BatchConfig(updated))
	if old.Breaker != updated.Breaker || old.Replica.MaxOpenConns != updated.Replica.MaxOpenConns {
		c.Logger.Warn("Breaker and pool changes take effect after a restart")
	}
	c.Logger.Info("Fan-out tuning reloaded",
		zap.Int("count_batch_size", updated.FanOut.CountBatchSize),
		zap.Duration("batch_delay", updated.FanOut.BatchDelay),
		zap.Int("max_concurrent_batches", updated.FanOut.MaxConcurrentBatches),
	)
}

// Shutdown runs the cleanups in reverse construction order.
func (c *Container) Shutdown() {
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
	c.cleanups = nil
	_ = c.Logger.Sync()
}
