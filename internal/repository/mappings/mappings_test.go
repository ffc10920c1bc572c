package mappings

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/cache"
)

func alias(s string) *string { return &s }

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "gb_keto_hindi", TableDescriptor{TableName: "gb_keto_hindi"}.DisplayName())
	assert.Equal(t, "Keto (Hindi)", TableDescriptor{TableName: "gb_keto_hindi", CustomTableName: alias("Keto (Hindi)")}.DisplayName())
	assert.Equal(t, "gb_keto_hindi", TableDescriptor{TableName: "gb_keto_hindi", CustomTableName: alias("  ")}.DisplayName())
}

func TestNormalize(t *testing.T) {
	got := Normalize([]TableDescriptor{
		{TableName: "gb_men_x_tamil"},
		{TableName: " "},
		{TableName: "gb_keto_hindi", CustomTableName: alias("")},
		{TableName: "gb_men_x_tamil", CustomTableName: alias("Men X (Tamil)")},
		{TableName: "gb_keto_hindi", CustomTableName: alias("Keto (Hindi)")},
		{TableName: "gb_keto_hindi", CustomTableName: alias("ignored")},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "gb_keto_hindi", got[0].TableName)
	assert.Equal(t, "Keto (Hindi)", got[0].DisplayName())
	assert.Equal(t, "gb_men_x_tamil", got[1].TableName)
	assert.Equal(t, "Men X (Tamil)", got[1].DisplayName())

	assert.Empty(t, Normalize(nil))
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource([]TableDescriptor{{TableName: "b"}, {TableName: "a"}})
	got, err := src.ListActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []TableDescriptor{{TableName: "a"}, {TableName: "b"}}, got)

	got[0].TableName = "mutated"
	again, _ := src.ListActive(context.Background())
	assert.Equal(t, "a", again[0].TableName)
}

func newStore(t *testing.T, now func() time.Time) *cache.Store {
	t.Helper()
	store, err := cache.NewStore(cache.Config{
		DefaultTTL:     time.Minute,
		DefaultMaxSize: 100,
		Namespaces:     map[string]cache.NamespaceConfig{CacheNamespace: {MaxSize: 10, TTL: 30 * time.Second}},
	}, zap.NewNop(), cache.WithClock(now))
	require.NoError(t, err)
	return store
}

func TestCachedSource(t *testing.T) {
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	store := newStore(t, func() time.Time { return now })

	var calls int32
	inner := SourceFunc(func(context.Context) ([]TableDescriptor, error) {
		atomic.AddInt32(&calls, 1)
		return []TableDescriptor{{TableName: "gb_keto_hindi"}}, nil
	})
	src := NewCachedSource(inner, store, 0)

	for i := 0; i < 3; i++ {
		got, err := src.ListActive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "gb_keto_hindi", got[0].TableName)
		got[0].TableName = "caller's copy"
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	now = now.Add(30 * time.Second)
	_, err := src.ListActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	src.Invalidate()
	_, err = src.ListActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCachedSourceDoesNotCacheErrors(t *testing.T) {
	store := newStore(t, time.Now)
	var calls int32
	inner := SourceFunc(func(context.Context) ([]TableDescriptor, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("connection refused")
		}
		return []TableDescriptor{{TableName: "gb_keto_hindi"}}, nil
	})
	src := NewCachedSource(inner, store, time.Minute)

	_, err := src.ListActive(context.Background())
	assert.Error(t, err)
	got, err := src.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
