package di

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/config"
	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/events"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/replica"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/service/analytics"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Environment = config.Test
	cfg.Mappings.Static = []config.StaticMapping{
		{TableName: "gb_men_x_tamil", CustomTableName: "Men X Tamil"},
		{TableName: "gb_keto_hindi"},
	}
	cfg.FanOut.BatchDelay = 0
	cfg.FanOut.Adaptive.Enabled = false
	return cfg
}

type countingExecutor struct {
	calls atomic.Int64
}

func (e *countingExecutor) Query(context.Context, replica.Statement) (any, error) {
	e.calls.Add(1)
	return []map[string]any{{"count": int64(7)}}, nil
}

func TestAssembleServesStaticMappings(t *testing.T) {
	exec := &countingExecutor{}
	c, err := assemble(context.Background(), testConfig(), zap.NewNop(), exec)
	require.NoError(t, err)
	defer c.Shutdown()

	assert.NotNil(t, c.Collector)
	assert.Nil(t, c.Bus)
	assert.Nil(t, c.CloudWatch)
	assert.False(t, c.Tracer.Enabled())

	w := httptest.NewRecorder()
	c.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/table-counts", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp analytics.Response[[]analytics.TableCount]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "gb_keto_hindi", resp.Data[0].TableName)
	assert.Equal(t, "gb_men_x_tamil", resp.Data[1].TableName)
	require.NotNil(t, resp.Data[1].CustomTableName)
	assert.Equal(t, "Men X Tamil", *resp.Data[1].CustomTableName)
	assert.Equal(t, int64(7), resp.Data[0].Count)
	assert.Equal(t, int64(2), exec.calls.Load())

	w = httptest.NewRecorder()
	c.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Contains(t, w.Body.String(), `"breaker":"CLOSED"`)

	w = httptest.NewRecorder()
	c.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "leads_analytics_replica_queries_total")
	assert.Contains(t, w.Body.String(), "leads_analytics_cache_misses_total")
}

func TestAssembleWithoutMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.Observability.MetricsEnabled = false

	c, err := assemble(context.Background(), cfg, zap.NewNop(), &countingExecutor{})
	require.NoError(t, err)
	defer c.Shutdown()

	assert.Nil(t, c.Collector)
	w := httptest.NewRecorder()
	c.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	resp := c.Service.GetTotalCount(context.Background())
	require.True(t, resp.Success)
	assert.Equal(t, int64(14), resp.Data.Total)
}

func TestAssembleRejectsBadCacheConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.DefaultTTL = 0

	_, err := assemble(context.Background(), cfg, zap.NewNop(), &countingExecutor{})
	require.Error(t, err)
}

func TestNewContainerRequiresReplica(t *testing.T) {
	cfg := testConfig()
	cfg.Replica.DSN = ""

	_, err := NewContainer(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
}

func TestApplyConfig(t *testing.T) {
	c, err := assemble(context.Background(), testConfig(), zap.NewNop(), &countingExecutor{})
	require.NoError(t, err)
	defer c.Shutdown()

	updated := testConfig()
	updated.FanOut.CountBatchSize = 3
	updated.FanOut.BatchDelay = 500 * time.Millisecond
	c.ApplyConfig(c.Config, updated)

	got := c.Batches.Config()
	assert.Equal(t, 3, got.BatchSize)
	assert.Equal(t, 500*time.Millisecond, got.BatchDelay)
}

func TestConversions(t *testing.T) {
	cfg := testConfig()

	sc := StoreConfig(cfg)
	assert.Equal(t, cfg.Cache.DefaultTTL, sc.DefaultTTL)
	assert.Equal(t, 3*time.Minute, sc.Namespaces["tables"].TTL)
	assert.Len(t, sc.Namespaces, len(cfg.Cache.Namespaces))

	rc := RetryConfig(cfg)
	assert.Equal(t, []string{"Queue limit"}, rc.Patterns)
	assert.Equal(t, 3, rc.MaxRetries)

	bc := BatchConfig(cfg)
	assert.Equal(t, cfg.FanOut.CountBatchSize, bc.BatchSize)
	assert.False(t, bc.Adaptive.Enabled)

	tables := staticTables(cfg)
	require.Len(t, tables, 2)
	assert.Equal(t, "Men X Tamil", tables[0].DisplayName())
	assert.Nil(t, tables[1].CustomTableName)

	assert.Equal(t, events.NoopBus{}, provideInvalidator(nil))
}
