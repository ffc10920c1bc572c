package di

import (
	"context"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"go.uber.org/zap"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/config"
	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/breaker"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/cache"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/concurrency"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/events"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/observability"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/replica"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/interfaces/http/rest"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/repository/mappings"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/service/analytics"
)

const metricsNamespace = "leads_analytics"

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(cfg.IsProduction(), cfg.Observability.LogLevel)
}

// provideCollector returns nil when metrics are disabled.
func provideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.Observability.MetricsEnabled {
		return nil
	}
	return observability.NewCollector(metricsNamespace)
}

func provideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	t := cfg.Observability.Tracing
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     t.Enabled,
		Endpoint:    t.Endpoint,
		ServiceName: t.ServiceName,
		Environment: string(cfg.Environment),
		SampleRate:  t.SampleRate,
		Insecure:    t.Insecure,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// StoreConfig converts the cache section for cache.NewStore.
func StoreConfig(cfg *config.Config) cache.Config {
	namespaces := make(map[string]cache.NamespaceConfig, len(cfg.Cache.Namespaces))
	for name, ns := range cfg.Cache.Namespaces {
		namespaces[name] = cache.NamespaceConfig{MaxSize: ns.MaxSize, TTL: ns.TTL}
	}
	return cache.Config{
		DefaultTTL:     cfg.Cache.DefaultTTL,
		DefaultMaxSize: cfg.Cache.DefaultMaxSize,
		SweepInterval:  cfg.Cache.SweepInterval,
		Namespaces:     namespaces,
	}
}

func provideStore(cfg *config.Config, logger *zap.Logger, collector *observability.Collector) (*cache.Store, func(), error) {
	var opts []cache.Option
	if collector != nil {
		opts = append(opts, cache.WithRecorder(collector))
	}
	store, err := cache.NewStore(StoreConfig(cfg), logger, opts...)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func provideBreaker(cfg *config.Config, logger *zap.Logger, collector *observability.Collector) *breaker.CircuitBreaker {
	bc := breaker.Config{
		Name:             "replica",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
		HalfOpenRequests: cfg.Breaker.HalfOpenRequests,
	}
	if collector == nil {
		return breaker.New(bc, logger)
	}
	return breaker.New(bc, logger, collector)
}

func provideSQLExecutor(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*replica.SQLExecutor, func(), error) {
	if cfg.Replica.DSN == "" {
		return nil, nil, apperrors.Config(apperrors.CodeInvalidConfig, "replica is not configured").
			WithDetails("set replica.dsn or REPLICA_DSN").Build()
	}
	exec, err := replica.Open(ctx, replica.PoolConfig{
		DSN:             cfg.Replica.DSN,
		MaxOpenConns:    cfg.Replica.MaxOpenConns,
		MaxIdleConns:    cfg.Replica.MaxIdleConns,
		ConnMaxLifetime: cfg.Replica.ConnMaxLifetime,
		PingTimeout:     cfg.Replica.PingTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := exec.Close(); err != nil {
			logger.Warn("Closing replica pool failed", zap.Error(err))
		}
	}
	return exec, cleanup, nil
}

// RetryConfig converts the retry section.
func RetryConfig(cfg *config.Config) replica.RetryConfig {
	return replica.RetryConfig{
		MaxRetries: cfg.Retry.MaxRetries,
		RetryDelay: cfg.Retry.RetryDelay,
		Patterns:   cfg.Retry.Patterns,
	}
}

func provideExecutor(base *replica.SQLExecutor, cb *breaker.CircuitBreaker, cfg *config.Config,
	collector *observability.Collector, logger *zap.Logger) replica.Executor {
	return chainExecutor(base, cb, cfg, collector, logger)
}

func chainExecutor(base replica.Executor, cb *breaker.CircuitBreaker, cfg *config.Config,
	collector *observability.Collector, logger *zap.Logger) replica.Executor {
	if collector == nil {
		return replica.Chain(base, cb, RetryConfig(cfg), nil, logger)
	}
	return replica.Chain(base, cb, RetryConfig(cfg), collector, logger)
}

// BatchConfig converts the fan-out section. Counts use CountBatchSize; the
// service overrides it per job for the multi-query stats.
func BatchConfig(cfg *config.Config) concurrency.Config {
	f := cfg.FanOut
	return concurrency.Config{
		BatchSize:            f.CountBatchSize,
		BatchDelay:           f.BatchDelay,
		MaxConcurrentBatches: f.MaxConcurrentBatches,
		ItemTimeout:          f.ItemTimeout,
		Adaptive: concurrency.AdaptiveConfig{
			Enabled:       f.Adaptive.Enabled,
			MinDelay:      f.Adaptive.MinDelay,
			MaxDelay:      f.Adaptive.MaxDelay,
			IncreaseStep:  f.Adaptive.IncreaseStep,
			DecreaseStep:  f.Adaptive.DecreaseStep,
			SlowThreshold: f.Adaptive.SlowThreshold,
			FastThreshold: f.Adaptive.FastThreshold,
		},
	}
}

func provideBatchProcessor(cfg *config.Config, logger *zap.Logger, collector *observability.Collector) *concurrency.BatchProcessor {
	if collector == nil {
		return concurrency.NewBatchProcessor(BatchConfig(cfg), logger)
	}
	return concurrency.NewBatchProcessor(BatchConfig(cfg), logger, concurrency.WithObserver(collector))
}

// staticTables converts the configured fallback mapping list.
func staticTables(cfg *config.Config) []mappings.TableDescriptor {
	out := make([]mappings.TableDescriptor, 0, len(cfg.Mappings.Static))
	for _, m := range cfg.Mappings.Static {
		d := mappings.TableDescriptor{TableName: m.TableName}
		if m.CustomTableName != "" {
			name := m.CustomTableName
			d.CustomTableName = &name
		}
		out = append(out, d)
	}
	return out
}

// provideTableSource reads mappings from Postgres when a DSN is set and
// from the static list otherwise. Either way the list is cached briefly.
func provideTableSource(ctx context.Context, cfg *config.Config, store *cache.Store, logger *zap.Logger) (*mappings.CachedSource, func(), error) {
	if cfg.Mappings.DSN == "" {
		logger.Info("Serving static table mappings", zap.Int("tables", len(cfg.Mappings.Static)))
		return mappings.NewCachedSource(mappings.NewStaticSource(staticTables(cfg)), store, cfg.Cache.MappingsTTL), func() {}, nil
	}
	db, err := mappings.Connect(ctx, cfg.Mappings.DSN, cfg.Mappings.MaxConns, logger)
	if err != nil {
		return nil, nil, err
	}
	repo := mappings.NewRepository(db, logger)
	cleanup := func() {
		if err := repo.Close(); err != nil {
			logger.Warn("Closing mapping store failed", zap.Error(err))
		}
	}
	return mappings.NewCachedSource(repo, store, cfg.Cache.MappingsTTL), cleanup, nil
}

// provideRedisBus returns nil when Redis is disabled.
func provideRedisBus(cfg *config.Config, store *cache.Store, logger *zap.Logger) (*events.RedisBus, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := events.Connect(cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	bus := events.NewRedisBus(client, cfg.Redis.Channel, store, logger)
	cleanup := func() {
		if err := bus.Close(); err != nil {
			logger.Warn("Closing redis client failed", zap.Error(err))
		}
	}
	return bus, cleanup, nil
}

func provideInvalidator(bus *events.RedisBus) events.Invalidator {
	if bus == nil {
		return events.NoopBus{}
	}
	return bus
}

func provideService(cfg *config.Config, tables *mappings.CachedSource, exec replica.Executor,
	batches *concurrency.BatchProcessor, store *cache.Store, cb *breaker.CircuitBreaker,
	inv events.Invalidator, logger *zap.Logger) (*analytics.Service, error) {
	return analytics.NewService(analytics.Dependencies{
		Tables:      tables,
		Executor:    exec,
		Batches:     batches,
		Store:       store,
		Breaker:     cb,
		Invalidator: inv,
		Reporting: analytics.Reporting{
			Location:        cfg.Location(),
			TimestampColumn: cfg.Reporting.TimestampColumn,
			TimestampUnit:   cfg.Reporting.TimestampUnit,
			Schema:          cfg.Replica.Schema,
		},
		TTLs: analytics.TTLs{
			Counts:    cfg.Cache.CountsTTL,
			Stats:     cfg.Cache.StatsTTL,
			Sizes:     cfg.Cache.SizesTTL,
			Growth:    cfg.Cache.GrowthTTL,
			Dashboard: cfg.Cache.DashboardTTL,
		},
		StatsBatchSize:    cfg.FanOut.StatsBatchSize,
		DisableCoalescing: !cfg.Cache.Coalesce,
		Logger:            logger,
	})
}

func provideRouter(cfg *config.Config, svc *analytics.Service, collector *observability.Collector,
	tp *observability.TracerProvider, cb *breaker.CircuitBreaker, logger *zap.Logger) http.Handler {
	opts := rest.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Location:       cfg.Location(),
		Collector:      collector,
		BreakerState:   func() string { return string(cb.State()) },
	}
	if tp != nil && tp.Enabled() {
		opts.ServiceName = cfg.Observability.Tracing.ServiceName
	}
	return rest.NewRouter(svc, opts, logger).Setup()
}

// provideCloudWatch returns nil when the reporter is disabled.
func provideCloudWatch(ctx context.Context, cfg *config.Config, store *cache.Store, logger *zap.Logger) (*observability.CloudWatchReporter, error) {
	cw := cfg.Observability.CloudWatch
	if !cw.Enabled {
		return nil, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cw.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cw.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.Config(apperrors.CodeInvalidConfig, "load AWS config").WithCause(err).Build()
	}
	return observability.NewCloudWatchReporter(cw.Namespace, cloudwatch.NewFromConfig(awsCfg), store, cw.Interval, logger), nil
}
