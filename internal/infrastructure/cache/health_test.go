package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateHitRate(t *testing.T) {
	tests := []struct {
		rate float64
		want Rating
	}{
		{100, RatingExcellent},
		{80, RatingExcellent},
		{79.99, RatingGood},
		{60, RatingGood},
		{40, RatingFair},
		{39.9, RatingPoor},
		{0, RatingPoor},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.rate), func(t *testing.T) {
			assert.Equal(t, tt.want, RateHitRate(tt.rate))
		})
	}
}

func TestEfficiency(t *testing.T) {
	s := newTestStore(t, newFakeClock(), map[string]NamespaceConfig{
		"tables": {MaxSize: 10, TTL: time.Hour},
	})
	s.Set("a", 1, InNamespace("tables"))
	for i := 0; i < 4; i++ {
		s.Get("a", "tables")
	}
	s.Get("b", "tables")

	reports := Efficiency(s)
	require.Len(t, reports, 2)
	assert.Equal(t, DefaultNamespace, reports[0].Namespace)
	assert.Equal(t, "tables", reports[1].Namespace)
	assert.Equal(t, 80.0, reports[1].HitRate)
	assert.Equal(t, RatingExcellent, reports[1].Rating)
	assert.Equal(t, 10.0, reports[1].Utilization)
	assert.Equal(t, int64(5), reports[1].Requests)
}

func TestCheckHealth(t *testing.T) {
	t.Run("idle store is healthy", func(t *testing.T) {
		s := newTestStore(t, newFakeClock(), nil)
		report := CheckHealth(s)
		assert.True(t, report.Healthy)
		assert.Empty(t, report.Issues)
	})

	t.Run("near capacity", func(t *testing.T) {
		s := newTestStore(t, newFakeClock(), map[string]NamespaceConfig{
			"tables": {MaxSize: 10, TTL: time.Hour},
		})
		for i := 0; i < 9; i++ {
			s.Set(fmt.Sprintf("k%d", i), i, InNamespace("tables"))
		}
		s.Get("k1", "tables")

		report := CheckHealth(s)
		assert.False(t, report.Healthy)
		require.Len(t, report.Issues, 1)
		assert.Contains(t, report.Issues[0], "near capacity (9/10)")
		assert.Len(t, report.Recommendations, 1)
	})

	t.Run("entries without traffic", func(t *testing.T) {
		s := newTestStore(t, newFakeClock(), nil)
		s.Set("orphan", 1, InNamespace("dashboard"))

		report := CheckHealth(s)
		assert.False(t, report.Healthy)
		require.Len(t, report.Issues, 1)
		assert.Contains(t, report.Issues[0], `"dashboard" holds 1 entries but has no traffic`)
	})

	t.Run("low hit rate", func(t *testing.T) {
		s := newTestStore(t, newFakeClock(), nil)
		s.Set("a", 1)
		s.Get("a", "")
		for i := 0; i < 9; i++ {
			s.Get("missing", "")
		}

		report := CheckHealth(s)
		assert.False(t, report.Healthy)
		require.Len(t, report.Issues, 1)
		assert.Contains(t, report.Issues[0], "hit rate is 10.00%")
	})
}
