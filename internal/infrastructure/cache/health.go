package cache

import (
	"fmt"
	"math"
	"sort"
)

// Rating is a qualitative hit-rate grade.
type Rating string

const (
	RatingExcellent Rating = "Excellent"
	RatingGood      Rating = "Good"
	RatingFair      Rating = "Fair"
	RatingPoor      Rating = "Poor"
)

const (
	nearCapacityPercent = 90.0
	lowHitRatePercent   = 50.0
	minRequestsForRate  = 10
)

// RateHitRate grades a hit rate given in percent.
func RateHitRate(hitRate float64) Rating {
	switch {
	case hitRate >= 80:
		return RatingExcellent
	case hitRate >= 60:
		return RatingGood
	case hitRate >= 40:
		return RatingFair
	default:
		return RatingPoor
	}
}

// EfficiencyReport grades one namespace.
type EfficiencyReport struct {
	Namespace   string  `json:"namespace"`
	HitRate     float64 `json:"hitRate"`
	Rating      Rating  `json:"rating"`
	Utilization float64 `json:"utilization"` // percent of max size in use
	Requests    int64   `json:"requests"`
}

// Efficiency grades every namespace, sorted by name.
func Efficiency(store *Store) []EfficiencyReport {
	all := store.AllStats()
	reports := make([]EfficiencyReport, 0, len(all))
	for name, st := range all {
		reports = append(reports, EfficiencyReport{
			Namespace:   name,
			HitRate:     st.HitRate,
			Rating:      RateHitRate(st.HitRate),
			Utilization: utilization(st),
			Requests:    st.TotalRequests,
		})
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Namespace < reports[j].Namespace })
	return reports
}

// HealthReport lists problems found across namespaces. It is diagnostic
// only; nothing acts on it automatically.
type HealthReport struct {
	Healthy         bool                  `json:"healthy"`
	Issues          []string              `json:"issues"`
	Recommendations []string              `json:"recommendations"`
	Namespaces      map[string]Statistics `json:"namespaces"`
}

// CheckHealth flags namespaces that are near capacity, hold entries nobody
// reads, or miss more often than they hit.
func CheckHealth(store *Store) HealthReport {
	all := store.AllStats()
	report := HealthReport{
		Issues:          []string{},
		Recommendations: []string{},
		Namespaces:      all,
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st := all[name]
		if u := utilization(st); u >= nearCapacityPercent {
			report.Issues = append(report.Issues,
				fmt.Sprintf("namespace %q is near capacity (%d/%d)", name, st.Size, st.MaxSize))
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("raise max size or shorten the TTL of %q", name))
		}
		if st.TotalRequests == 0 && st.Size > 0 {
			report.Issues = append(report.Issues,
				fmt.Sprintf("namespace %q holds %d entries but has no traffic", name, st.Size))
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("check that readers of %q query the namespace it is written to", name))
		}
		if st.TotalRequests >= minRequestsForRate && st.HitRate < lowHitRatePercent {
			report.Issues = append(report.Issues,
				fmt.Sprintf("namespace %q hit rate is %.2f%%", name, st.HitRate))
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("lengthen the TTL of %q or warm it after refresh", name))
		}
	}
	report.Healthy = len(report.Issues) == 0
	return report
}

func utilization(st Statistics) float64 {
	if st.MaxSize == 0 {
		return 0
	}
	return math.Round(float64(st.Size)/float64(st.MaxSize)*10000) / 100
}
