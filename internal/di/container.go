//go:build !wireinject
// +build !wireinject

package di

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/config"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/replica"
)

// NewContainer builds every dependency for cfg, connecting to the replica,
// the mapping store and Redis as configured. On error, whatever was already
// opened is closed again.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := provideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	exec, cleanup, err := provideSQLExecutor(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open replica: %w", err)
	}
	c, err := assemble(ctx, cfg, logger, exec)
	if err != nil {
		cleanup()
		return nil, err
	}
	c.cleanups = append([]func(){cleanup}, c.cleanups...)
	return c, nil
}

// assemble builds the container around an already opened replica.
func assemble(ctx context.Context, cfg *config.Config, logger *zap.Logger, base replica.Executor) (c *Container, err error) {
	start := time.Now()
	var cleanups []func()
	defer func() {
		if err != nil {
			for i := len(cleanups) - 1; i >= 0; i-- {
				cleanups[i]()
			}
		}
	}()

	collector := provideCollector(cfg)

	tp, tracingCleanup, err := provideTracing(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	cleanups = append(cleanups, tracingCleanup)

	store, storeCleanup, err := provideStore(cfg, logger, collector)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	cleanups = append(cleanups, storeCleanup)

	cb := provideBreaker(cfg, logger, collector)
	exec := chainExecutor(base, cb, cfg, collector, logger)
	batches := provideBatchProcessor(cfg, logger, collector)

	tables, tablesCleanup, err := provideTableSource(ctx, cfg, store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping store: %w", err)
	}
	cleanups = append(cleanups, tablesCleanup)

	bus, busCleanup, err := provideRedisBus(cfg, store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	cleanups = append(cleanups, busCleanup)

	svc, err := provideService(cfg, tables, exec, batches, store, cb, provideInvalidator(bus), logger)
	if err != nil {
		return nil, err
	}
	router := provideRouter(cfg, svc, collector, tp, cb, logger)

	cw, err := provideCloudWatch(ctx, cfg, store, logger)
	if err != nil {
		return nil, err
	}

	c = provideContainer(cfg, logger, collector, tp, store, cb, exec, batches, tables, bus, svc, router, cw)
	c.cleanups = cleanups

	logger.Info("Dependency container initialized",
		zap.String("environment", string(cfg.Environment)),
		zap.Bool("metrics", collector != nil),
		zap.Bool("tracing", tp.Enabled()),
		zap.Bool("redis", bus != nil),
		zap.Bool("cloudwatch", cw != nil),
		zap.Duration("duration", time.Since(start)),
	)
	return c, nil
}
