// Package rest is the thin HTTP surface over the analytics service.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/cache"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/observability"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/interfaces/http/middleware"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/service/analytics"
)

// AnalyticsService is the part of *analytics.Service the routes call.
type AnalyticsService interface {
	GetAllTableCounts(ctx context.Context) analytics.Response[[]analytics.TableCount]
	GetTableCount(ctx context.Context, table string) analytics.Response[analytics.TableCount]
	GetTotalCount(ctx context.Context) analytics.Response[analytics.TotalCount]
	GetTableSizes(ctx context.Context) analytics.Response[[]analytics.TableSize]
	GetDailyStats(ctx context.Context) analytics.Response[[]analytics.DailyStat]
	GetWindowCounts(ctx context.Context, window analytics.Window) analytics.Response[[]analytics.TableCount]
	GetTableWiseCountsWithGrowth(ctx context.Context, from, to time.Time) analytics.Response[analytics.GrowthReport]
	GetDashboardSummary(ctx context.Context) analytics.Response[analytics.DashboardSummary]

	RefreshCache(ctx context.Context) analytics.Response[analytics.RefreshResult]
	CacheStats() analytics.Response[analytics.CacheReport]
	CacheEfficiency() analytics.Response[[]cache.EfficiencyReport]
	CacheHealth() analytics.Response[cache.HealthReport]
}

// Options configure the router.
type Options struct {
	AllowedOrigins []string
	// Location is the reporting timezone the growth dates are read in.
	Location *time.Location
	// ServiceName enables the tracing middleware when set.
	ServiceName string
	// Collector enables request metrics and /metrics when set.
	Collector *observability.Collector
	// BreakerState is reported by /health when set.
	BreakerState func() string
}

// Router creates and configures the HTTP router.
type Router struct {
	svc      AnalyticsService
	opts     Options
	validate *validator.Validate
	logger   *zap.Logger
}

// NewRouter creates a new router instance.
func NewRouter(svc AnalyticsService, opts Options, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Router{
		svc:      svc,
		opts:     opts,
		validate: validator.New(),
		logger:   logger.Named("http"),
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(rt.logger))
	router.Use(middleware.Logger(rt.logger))
	if rt.opts.ServiceName != "" {
		router.Use(observability.TracingMiddleware(rt.opts.ServiceName))
	}
	if rt.opts.Collector != nil {
		router.Use(observability.MetricsMiddleware(rt.opts.Collector))
	}

	origins := rt.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	router.Get("/health", rt.healthCheck)
	if rt.opts.Collector != nil {
		router.Method(http.MethodGet, "/metrics", rt.opts.Collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/table-counts", rt.tableCounts)
			r.Get("/table-counts/{table}", rt.tableCount)
			r.Get("/total", rt.totalCount)
			r.Get("/table-sizes", rt.tableSizes)
			r.Get("/daily-stats", rt.dailyStats)
			r.Get("/windows/{window}", rt.windowCounts)
			r.Get("/growth", rt.growth)
			r.Get("/summary", rt.summary)
		})

		r.Route("/admin/cache", func(r chi.Router) {
			r.Post("/refresh", rt.refreshCache)
			r.Get("/stats", rt.cacheStats)
			r.Get("/efficiency", rt.cacheEfficiency)
			r.Get("/health", rt.cacheHealth)
		})
	})

	return router
}
