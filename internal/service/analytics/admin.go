package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/breaker"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/cache"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/events"
)

// RefreshResult reports an admin cache refresh.
type RefreshResult struct {
	Cleared     bool      `json:"cleared"`
	Broadcast   bool      `json:"broadcast"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

// CacheReport is the admin view of the store and the replica breaker.
type CacheReport struct {
	Namespaces map[string]cache.Statistics `json:"namespaces"`
	Breaker    *breaker.Snapshot           `json:"breaker,omitempty"`
}

// RefreshCache clears every namespace and asks the other instances to do
// the same. A failed broadcast is logged; the local clear still counts.
func (s *Service) RefreshCache(ctx context.Context) Response[RefreshResult] {
	return guard(s.logger, "RefreshCache", func() (RefreshResult, error) {
		s.store.Clear("")
		res := RefreshResult{Cleared: true, RefreshedAt: s.now()}
		if s.invalidator == nil {
			return res, nil
		}
		if err := s.invalidator.Publish(ctx, events.Invalidation{}); err != nil {
			s.logger.Warn("Cache clear broadcast failed", zap.Error(err))
			return res, nil
		}
		res.Broadcast = true
		return res, nil
	})
}

// CacheStats returns per-namespace statistics.
func (s *Service) CacheStats() Response[CacheReport] {
	return guard(s.logger, "CacheStats", func() (CacheReport, error) {
		report := CacheReport{Namespaces: s.store.AllStats()}
		if s.breaker != nil {
			snap := s.breaker.Snapshot()
			report.Breaker = &snap
		}
		return report, nil
	})
}

// CacheEfficiency rates each namespace's hit rate.
func (s *Service) CacheEfficiency() Response[[]cache.EfficiencyReport] {
	return guard(s.logger, "CacheEfficiency", func() ([]cache.EfficiencyReport, error) {
		return cache.Efficiency(s.store), nil
	})
}

// CacheHealth flags full, idle and ineffective namespaces.
func (s *Service) CacheHealth() Response[cache.HealthReport] {
	return guard(s.logger, "CacheHealth", func() (cache.HealthReport, error) {
		return cache.CheckHealth(s.store), nil
	})
}
