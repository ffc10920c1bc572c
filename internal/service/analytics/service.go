// Package analytics is the cached read API over the lead tables: per-table
// counts, windowed daily stats, growth between equal-length windows, table
// sizes and the dashboard summary, plus the cache admin surface.
//
// Every per-table figure comes from a batched fan-out over the mapped
// tables. A table whose queries fail contributes a zero record instead of
// failing the call, and totals are always summed from the fetched records.
// A result in which every table fell back is served but not cached, and a
// fan-out cut short by its context is an error, so neither outlives the
// outage that produced it.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/breaker"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/cache"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/concurrency"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/events"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/replica"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/repository/mappings"
)

// Cache namespaces used by the service.
const (
	NamespaceTables    = "tables"
	NamespaceAnalytics = "analytics"
	NamespaceDashboard = "dashboard"
)

// TableSource lists the mapped tables.
type TableSource interface {
	ListActive(ctx context.Context) ([]mappings.TableDescriptor, error)
}

// Reporting describes how lead timestamps are interpreted.
type Reporting struct {
	Location        *time.Location
	TimestampColumn string
	TimestampUnit   string
	Schema          string
}

// TTLs per cached operation. Zero uses the namespace TTL.
type TTLs struct {
	Counts    time.Duration
	Stats     time.Duration
	Sizes     time.Duration
	Growth    time.Duration
	Dashboard time.Duration
}

// Dependencies of a Service.
type Dependencies struct {
	Tables   TableSource
	Executor replica.Executor
	Batches  *concurrency.BatchProcessor
	Store    *cache.Store
	// Breaker is only reported by CacheStats; the executor chain owns it.
	Breaker     *breaker.CircuitBreaker
	Invalidator events.Invalidator

	Reporting Reporting
	TTLs      TTLs
	// StatsBatchSize overrides the batch size for the multi-query daily
	// stats fan-out.
	StatsBatchSize int
	// DisableCoalescing lets concurrent cold-cache callers each run the
	// fan-out instead of sharing one.
	DisableCoalescing bool

	Clock  func() time.Time
	Logger *zap.Logger
}

type windowArgs struct {
	Window Window `json:"window"`
	Day    string `json:"day"`
}

type growthArgs struct {
	Current  Range `json:"current"`
	Previous Range `json:"previous"`
}

// Service implements the aggregation operations.
type Service struct {
	tables      TableSource
	store       *cache.Store
	batches     *concurrency.BatchProcessor
	counter     *Counter
	breaker     *breaker.CircuitBreaker
	invalidator events.Invalidator
	loc         *time.Location
	statsBatch  int
	countsTTL   time.Duration
	now         func() time.Time
	logger      *zap.Logger

	allCounts    cache.Func[struct{}, []TableCount]
	tableCount   cache.Func[mappings.TableDescriptor, TableCount]
	sizes        cache.Func[struct{}, []TableSize]
	daily        cache.Func[string, []DailyStat]
	windowCounts cache.Func[windowArgs, []TableCount]
	growth       cache.Func[growthArgs, GrowthReport]
	dashboard    cache.Func[string, DashboardSummary]
}

// NewService wires the memoized operations. Missing collaborators are a
// programmer error.
func NewService(deps Dependencies) (*Service, error) {
	switch {
	case deps.Tables == nil:
		return nil, missing("table source")
	case deps.Executor == nil:
		return nil, missing("executor")
	case deps.Batches == nil:
		return nil, missing("batch processor")
	case deps.Store == nil:
		return nil, missing("cache store")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := deps.Reporting.Location
	if loc == nil {
		loc = time.UTC
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	s := &Service{
		tables:      deps.Tables,
		store:       deps.Store,
		batches:     deps.Batches,
		counter:     NewCounter(deps.Executor, deps.Reporting.TimestampColumn, deps.Reporting.TimestampUnit, deps.Reporting.Schema, logger),
		breaker:     deps.Breaker,
		invalidator: deps.Invalidator,
		loc:         loc,
		statsBatch:  deps.StatsBatchSize,
		countsTTL:   deps.TTLs.Counts,
		now:         now,
		logger:      logger.Named("analytics"),
	}

	opts := func(ns string, ttl time.Duration) cache.Options {
		return cache.Options{Namespace: ns, TTL: ttl, DisableCoalescing: deps.DisableCoalescing}
	}
	ttl := deps.TTLs
	fixed := func(key string) func(struct{}) string { return func(struct{}) string { return key } }

	s.allCounts = cache.WithCache(s.loadAllCounts, s.store, fixed("table_counts"), opts(NamespaceTables, ttl.Counts))
	s.tableCount = cache.CacheResult(s.loadTableCount, s.store, "table_count", opts(NamespaceTables, ttl.Counts))
	s.sizes = cache.WithCache(s.loadSizes, s.store, fixed("table_sizes"), opts(NamespaceTables, ttl.Sizes))
	s.daily = cache.CacheResult(s.loadDailyStats, s.store, "daily_stats", opts(NamespaceAnalytics, ttl.Stats))
	s.windowCounts = cache.CacheResult(s.loadWindowCounts, s.store, "window_counts", opts(NamespaceAnalytics, ttl.Stats))
	s.growth = cache.CacheResult(s.loadGrowth, s.store, "growth", opts(NamespaceAnalytics, ttl.Growth))
	s.dashboard = cache.CacheResult(s.loadDashboard, s.store, "summary", opts(NamespaceDashboard, ttl.Dashboard))
	return s, nil
}

func missing(what string) error {
	return apperrors.Config(apperrors.CodeInvalidConfig, "analytics service misconfigured").
		WithDetails(what + " is required").
		Build()
}

// today is the reporting date, which keys the windowed caches so they roll
// over at local midnight.
func (s *Service) today() string {
	return s.now().In(s.loc).Format(DateLayout)
}

// GetAllTableCounts returns the total lead count of every mapped table.
func (s *Service) GetAllTableCounts(ctx context.Context) Response[[]TableCount] {
	return guard(s.logger, "GetAllTableCounts", func() ([]TableCount, error) {
		return s.allCounts(ctx, struct{}{})
	})
}

// GetTableCount returns the count of one mapped table.
func (s *Service) GetTableCount(ctx context.Context, table string) Response[TableCount] {
	return guard(s.logger, "GetTableCount", func() (TableCount, error) {
		if err := replica.ValidateIdentifier(table); err != nil {
			return TableCount{}, err
		}
		d, err := s.lookup(ctx, table)
		if err != nil {
			return TableCount{}, err
		}
		return s.tableCount(ctx, d)
	})
}

// GetTotalCount sums the per-table counts.
func (s *Service) GetTotalCount(ctx context.Context) Response[TotalCount] {
	return guard(s.logger, "GetTotalCount", func() (TotalCount, error) {
		counts, err := s.allCounts(ctx, struct{}{})
		if err != nil {
			return TotalCount{}, err
		}
		total := TotalCount{Tables: len(counts)}
		for _, c := range counts {
			total.Total += c.Count
		}
		return total, nil
	})
}

// GetTableSizes returns every table's footprint, largest first.
func (s *Service) GetTableSizes(ctx context.Context) Response[[]TableSize] {
	return guard(s.logger, "GetTableSizes", func() ([]TableSize, error) {
		return s.sizes(ctx, struct{}{})
	})
}

// GetDailyStats returns the windowed breakdown of every table.
func (s *Service) GetDailyStats(ctx context.Context) Response[[]DailyStat] {
	return guard(s.logger, "GetDailyStats", func() ([]DailyStat, error) {
		return s.daily(ctx, s.today())
	})
}

// GetWindowCounts returns every table's count within one predefined window.
func (s *Service) GetWindowCounts(ctx context.Context, window Window) Response[[]TableCount] {
	return guard(s.logger, "GetWindowCounts", func() ([]TableCount, error) {
		w, err := ParseWindow(string(window))
		if err != nil {
			return nil, err
		}
		return s.windowCounts(ctx, windowArgs{Window: w, Day: s.today()})
	})
}

// GetTableWiseCountsWithGrowth compares each table's count over the
// inclusive day range [from, to] with the equal-length range before it.
// Zero dates default to today in the reporting timezone.
func (s *Service) GetTableWiseCountsWithGrowth(ctx context.Context, from, to time.Time) Response[GrowthReport] {
	return guard(s.logger, "GetTableWiseCountsWithGrowth", func() (GrowthReport, error) {
		current, previous, err := GrowthRanges(from, to, s.now(), s.loc)
		if err != nil {
			return GrowthReport{}, err
		}
		return s.growth(ctx, growthArgs{Current: current, Previous: previous})
	})
}

// GetDashboardSummary aggregates the daily stats in memory.
func (s *Service) GetDashboardSummary(ctx context.Context) Response[DashboardSummary] {
	return guard(s.logger, "GetDashboardSummary", func() (DashboardSummary, error) {
		return s.dashboard(ctx, s.today())
	})
}

func (s *Service) lookup(ctx context.Context, table string) (mappings.TableDescriptor, error) {
	tables, err := s.tables.ListActive(ctx)
	if err != nil {
		return mappings.TableDescriptor{}, err
	}
	for _, d := range tables {
		if d.TableName == table {
			return d, nil
		}
	}
	return mappings.TableDescriptor{}, apperrors.NotFound(apperrors.CodeUnknownTable, "table is not mapped").
		WithResource(table).
		WithDetails(table).
		Build()
}

// cacheable maps a fan-out error to what the memoizing wrapper should do:
// an all-fallback result goes to the caller unstored, a context error fails
// the call and is never stored either.
func cacheable(err error) error {
	if errors.Is(err, concurrency.ErrAllFailed) {
		return fmt.Errorf("%w: %w", cache.ErrDoNotCache, err)
	}
	return err
}

// countAll fans count out over tables.
func (s *Service) countAll(ctx context.Context, job string, tables []mappings.TableDescriptor,
	count func(ctx context.Context, table string) (int64, error)) ([]TableCount, error) {
	return concurrency.Run(ctx, s.batches, concurrency.Job[mappings.TableDescriptor, TableCount]{
		Name:  job,
		Items: tables,
		Work: func(ctx context.Context, d mappings.TableDescriptor) (TableCount, error) {
			n, err := count(ctx, d.TableName)
			if err != nil {
				return TableCount{}, err
			}
			tc := zeroCount(d)
			tc.Count = n
			return tc, nil
		},
		Fallback: func(d mappings.TableDescriptor, _ error) TableCount { return zeroCount(d) },
	})
}

func (s *Service) loadAllCounts(ctx context.Context, _ struct{}) ([]TableCount, error) {
	tables, err := s.tables.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.countAll(ctx, "table_counts", tables, s.counter.CountTable)
	return counts, cacheable(err)
}

func (s *Service) loadTableCount(ctx context.Context, d mappings.TableDescriptor) (TableCount, error) {
	n, err := s.counter.CountTable(ctx, d.TableName)
	if err != nil {
		return TableCount{}, err
	}
	tc := zeroCount(d)
	tc.Count = n
	return tc, nil
}

func (s *Service) loadSizes(ctx context.Context, _ struct{}) ([]TableSize, error) {
	tables, err := s.tables.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	sizes, err := concurrency.Run(ctx, s.batches, concurrency.Job[mappings.TableDescriptor, TableSize]{
		Name:  "table_sizes",
		Items: tables,
		Work:  s.counter.TableSize,
		Fallback: func(d mappings.TableDescriptor, _ error) TableSize {
			return TableSize{TableName: d.TableName, DisplayName: d.DisplayName()}
		},
	})
	sort.SliceStable(sizes, func(i, j int) bool { return sizes[i].SizeMB > sizes[j].SizeMB })
	return sizes, cacheable(err)
}

func (s *Service) loadDailyStats(ctx context.Context, _ string) ([]DailyStat, error) {
	tables, err := s.tables.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	windows := ComputeWindows(s.now(), s.loc)
	stats, err := concurrency.Run(ctx, s.batches, concurrency.Job[mappings.TableDescriptor, DailyStat]{
		Name:      "daily_stats",
		Items:     tables,
		BatchSize: s.statsBatch,
		Work: func(ctx context.Context, d mappings.TableDescriptor) (DailyStat, error) {
			return s.counter.DailyStat(ctx, d, windows)
		},
		Fallback: func(d mappings.TableDescriptor, _ error) DailyStat { return zeroStat(d) },
	})
	return stats, cacheable(err)
}

func (s *Service) loadWindowCounts(ctx context.Context, args windowArgs) ([]TableCount, error) {
	tables, err := s.tables.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	r := ComputeWindows(s.now(), s.loc).Window(args.Window)
	counts, err := s.countAll(ctx, "window_"+string(args.Window), tables, func(ctx context.Context, table string) (int64, error) {
		return s.counter.CountRange(ctx, table, r)
	})
	return counts, cacheable(err)
}

func (s *Service) loadGrowth(ctx context.Context, args growthArgs) (GrowthReport, error) {
	tables, err := s.tables.ListActive(ctx)
	if err != nil {
		return GrowthReport{}, err
	}
	rows, runErr := concurrency.Run(ctx, s.batches, concurrency.Job[mappings.TableDescriptor, TableGrowth]{
		Name:      "growth",
		Items:     tables,
		BatchSize: s.statsBatch,
		Work: func(ctx context.Context, d mappings.TableDescriptor) (TableGrowth, error) {
			cur, err := s.counter.CountRange(ctx, d.TableName, args.Current)
			if err != nil {
				return TableGrowth{}, err
			}
			prev, err := s.counter.CountRange(ctx, d.TableName, args.Previous)
			if err != nil {
				return TableGrowth{}, err
			}
			return TableGrowth{
				TableName:     d.TableName,
				DisplayName:   d.DisplayName(),
				Count:         cur,
				PreviousCount: prev,
				Growth:        Growth(cur, prev),
			}, nil
		},
		Fallback: func(d mappings.TableDescriptor, _ error) TableGrowth {
			return TableGrowth{TableName: d.TableName, DisplayName: d.DisplayName()}
		},
	})

	report := GrowthReport{
		From:         args.Current.From.Format(DateLayout),
		To:           args.Current.To.AddDate(0, 0, -1).Format(DateLayout),
		PreviousFrom: args.Previous.From.Format(DateLayout),
		PreviousTo:   args.Previous.To.AddDate(0, 0, -1).Format(DateLayout),
		Tables:       rows,
	}
	growths := make([]float64, 0, len(rows))
	for _, r := range rows {
		report.TotalCount += r.Count
		report.TotalPrevious += r.PreviousCount
		growths = append(growths, r.Growth)
	}
	report.TotalGrowth = Growth(report.TotalCount, report.TotalPrevious)
	report.AverageGrowth = AverageGrowth(growths)
	return report, cacheable(runErr)
}

func (s *Service) loadDashboard(ctx context.Context, day string) (DashboardSummary, error) {
	stats, err := s.daily(ctx, day)
	if err != nil {
		return DashboardSummary{}, err
	}
	sum := Summarize(stats, s.now())
	// The summary lives no longer than the stats it was built from.
	if !s.store.Has(cache.ArgsKey("daily_stats", day), NamespaceAnalytics) {
		return sum, cache.ErrDoNotCache
	}
	return sum, nil
}

// Summarize folds daily stats into the dashboard totals. Average growth is
// the mean day-over-day growth of the tables that have data.
func Summarize(stats []DailyStat, at time.Time) DashboardSummary {
	sum := DashboardSummary{TotalTables: len(stats), GeneratedAt: at}
	var growths []float64
	for _, st := range stats {
		sum.TotalToday += st.Today
		sum.TotalYesterday += st.Yesterday
		sum.TotalThisWeek += st.ThisWeek
		sum.TotalThisMonth += st.ThisMonth
		sum.TotalLastMonth += st.LastMonth
		sum.TotalRecords += st.TotalRecords
		if st.HasData {
			sum.TablesWithData++
			growths = append(growths, Growth(st.Today, st.Yesterday))
		}
	}
	sum.DailyGrowth = Growth(sum.TotalToday, sum.TotalYesterday)
	sum.MonthlyGrowth = Growth(sum.TotalThisMonth, sum.TotalLastMonth)
	sum.AverageGrowth = AverageGrowth(growths)
	return sum
}

// WarmTableCounts preloads the single-table count cache, best effort.
func (s *Service) WarmTableCounts(ctx context.Context) cache.WarmResult {
	tables, err := s.tables.ListActive(ctx)
	if err != nil {
		s.logger.Warn("Skipping cache warm-up", zap.Error(err))
		return cache.WarmResult{Failed: map[string]error{"tables": err}}
	}
	byKey := make(map[string]mappings.TableDescriptor, len(tables))
	keys := make([]string, 0, len(tables))
	for _, d := range tables {
		key := cache.ArgsKey("table_count", d)
		byKey[key] = d
		keys = append(keys, key)
	}
	return cache.WarmCache(ctx, s.store, keys, func(ctx context.Context, key string) (TableCount, error) {
		return s.loadTableCount(ctx, byKey[key])
	}, cache.Options{Namespace: NamespaceTables, TTL: s.countsTTL}, s.logger)
}
