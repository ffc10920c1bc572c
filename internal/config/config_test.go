package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/config"
	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2, cfg.Replica.MaxOpenConns)
	assert.Equal(t, 300*time.Millisecond, cfg.FanOut.BatchDelay)
	assert.Equal(t, uint32(5), cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.RecoveryTimeout)
	assert.Equal(t, []string{"Queue limit"}, cfg.Retry.Patterns)
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid defaults",
			mutate: func(*config.Config) {},
		},
		{
			name:    "zero batch size",
			mutate:  func(c *config.Config) { c.FanOut.CountBatchSize = 0 },
			wantErr: true,
			errMsg:  "CountBatchSize",
		},
		{
			name: "min delay above max delay",
			mutate: func(c *config.Config) {
				c.FanOut.Adaptive.MinDelay = 2 * time.Second
			},
			wantErr: true,
			errMsg:  "min_delay exceeds max_delay",
		},
		{
			name: "fast threshold not below slow threshold",
			mutate: func(c *config.Config) {
				c.FanOut.Adaptive.FastThreshold = c.FanOut.Adaptive.SlowThreshold
			},
			wantErr: true,
			errMsg:  "fast_threshold",
		},
		{
			name: "namespace with separator",
			mutate: func(c *config.Config) {
				c.Cache.Namespaces["a:b"] = config.NamespaceConfig{MaxSize: 1, TTL: time.Second}
			},
			wantErr: true,
			errMsg:  "must not contain ':'",
		},
		{
			name: "namespace without ttl",
			mutate: func(c *config.Config) {
				c.Cache.Namespaces["tables"] = config.NamespaceConfig{MaxSize: 10}
			},
			wantErr: true,
			errMsg:  "TTL",
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *config.Config) { c.Reporting.Timezone = "Mars/Olympus" },
			wantErr: true,
			errMsg:  "reporting.timezone",
		},
		{
			name:    "unknown timestamp unit",
			mutate:  func(c *config.Config) { c.Reporting.TimestampUnit = "fortnights" },
			wantErr: true,
			errMsg:  "TimestampUnit",
		},
		{
			name: "redis enabled without url",
			mutate: func(c *config.Config) {
				c.Redis.Enabled = true
			},
			wantErr: true,
			errMsg:  "URL",
		},
		{
			name: "production requires replica dsn",
			mutate: func(c *config.Config) {
				c.Environment = config.Production
			},
			wantErr: true,
			errMsg:  "replica.dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
		})
	}
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoaderLayers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
fanout:
  count_batch_size: 4
  batch_delay: 250ms
reporting:
  timezone: UTC
`)
	writeFile(t, dir, "test.yaml", `
fanout:
  count_batch_size: 3
mappings:
  static:
    - table_name: gb_men_x_tamil
      custom_table_name: Men X Tamil
    - table_name: gb_keto_hindi
`)

	cfg, err := config.NewLoader(dir, config.Test).Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.FanOut.CountBatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.FanOut.BatchDelay)
	assert.Equal(t, "UTC", cfg.Reporting.Timezone)
	require.Len(t, cfg.Mappings.Static, 2)
	assert.Equal(t, "Men X Tamil", cfg.Mappings.Static[0].CustomTableName)
	assert.Equal(t, config.Test, cfg.Environment)
	assert.Equal(t, []string{
		"defaults",
		filepath.Join(dir, "base.yaml"),
		filepath.Join(dir, "test.yaml"),
		"environment",
	}, cfg.LoadedFrom)
}

func TestLoaderEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "fanout:\n  count_batch_size: 4\n")

	t.Setenv("FANOUT_BATCH_SIZE", "2")
	t.Setenv("FANOUT_ITEM_TIMEOUT", "3s")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := config.NewLoader(dir, config.Test).Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.FanOut.CountBatchSize)
	assert.Equal(t, 3*time.Second, cfg.FanOut.ItemTimeout)
	assert.True(t, cfg.Redis.Enabled)
}

func TestShippedConfigFiles(t *testing.T) {
	dir := filepath.Join("..", "..", "config")

	t.Run("development", func(t *testing.T) {
		cfg, err := config.NewLoader(dir, config.Development).Load()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Observability.LogLevel)
		assert.Len(t, cfg.Mappings.Static, 2)
		assert.Equal(t, 5, cfg.FanOut.CountBatchSize)
		assert.Equal(t, 3*time.Minute, cfg.Cache.Namespaces["tables"].TTL)
	})

	t.Run("production", func(t *testing.T) {
		t.Setenv("REPLICA_DSN", "reader:secret@tcp(replica:3306)/leads")
		cfg, err := config.NewLoader(dir, config.Production).Load()
		require.NoError(t, err)
		assert.Empty(t, cfg.Mappings.Static)
		assert.True(t, cfg.Observability.CloudWatch.Enabled)
		assert.True(t, cfg.IsProduction())
	})
}

func TestLoaderRejectsBadInput(t *testing.T) {
	t.Run("unknown yaml field", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "base.yaml", "fanout:\n  batch_sise: 4\n")
		_, err := config.NewLoader(dir, config.Test).Load()
		assert.Error(t, err)
	})

	t.Run("malformed env var", func(t *testing.T) {
		t.Setenv("FANOUT_BATCH_SIZE", "five")
		_, err := config.NewLoader(t.TempDir(), config.Test).Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "FANOUT_BATCH_SIZE")
	})

	t.Run("invalid result", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "base.yaml", "retry:\n  max_retries: 50\n")
		_, err := config.NewLoader(dir, config.Test).Load()
		assert.Error(t, err)
	})
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "fanout:\n  count_batch_size: 4\n")

	loader := config.NewLoader(dir, config.Test)
	initial, err := loader.Load()
	require.NoError(t, err)

	w, err := config.NewWatcher(loader, initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	var got []int
	w.OnChange(func(old, new *config.Config) {
		got = append(got, old.FanOut.CountBatchSize, new.FanOut.CountBatchSize)
	})
	w.OnChange(func(_, _ *config.Config) { panic("callback failure") })

	// Unchanged content does not notify.
	w.Reload()
	assert.Empty(t, got)

	writeFile(t, dir, "base.yaml", "fanout:\n  count_batch_size: 1\n")
	w.Reload()
	assert.Equal(t, []int{4, 1}, got)
	assert.Equal(t, 1, w.Current().FanOut.CountBatchSize)

	// An invalid file keeps the previous configuration.
	writeFile(t, dir, "base.yaml", "fanout:\n  count_batch_size: 0\n")
	w.Reload()
	assert.Equal(t, 1, w.Current().FanOut.CountBatchSize)
}
