// Package config holds the runtime configuration of the analytics service.
//
// Configuration is layered: code defaults, then YAML files from the config
// directory, then environment variables. The fan-out and breaker tuning is
// empirically matched to a small replica connection pool, so every knob the
// batching apparatus reads lives here rather than in code.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // Lambda images ship without a zoneinfo database

	"github.com/go-playground/validator/v10"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
	Test        Environment = "test"
)

// Timestamp units for the lead creation column.
const (
	UnitSeconds      = "seconds"
	UnitMilliseconds = "milliseconds"
	UnitDatetime     = "datetime"
)

// Config is the root configuration.
type Config struct {
	Environment   Environment         `yaml:"environment" validate:"required,oneof=development staging production test"`
	Server        ServerConfig        `yaml:"server"`
	Replica       ReplicaConfig       `yaml:"replica"`
	Mappings      MappingsConfig      `yaml:"mappings"`
	Cache         CacheConfig         `yaml:"cache"`
	FanOut        FanOutConfig        `yaml:"fanout"`
	Breaker       BreakerConfig       `yaml:"breaker"`
	Retry         RetryConfig         `yaml:"retry"`
	Reporting     ReportingConfig     `yaml:"reporting"`
	Redis         RedisConfig         `yaml:"redis"`
	Observability ObservabilityConfig `yaml:"observability"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-"`
}

type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// ReplicaConfig describes the read replica holding the lead tables.
type ReplicaConfig struct {
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`
	PingTimeout     time.Duration `yaml:"ping_timeout" validate:"gt=0"`
}

// MappingsConfig points at the store of client to table mappings. When DSN
// is empty the Static list is served instead.
type MappingsConfig struct {
	DSN      string          `yaml:"dsn"`
	MaxConns int             `yaml:"max_conns" validate:"gte=1"`
	Static   []StaticMapping `yaml:"static" validate:"dive"`
}

type StaticMapping struct {
	TableName       string `yaml:"table_name" validate:"required"`
	CustomTableName string `yaml:"custom_table_name"`
}

// NamespaceConfig bounds one cache namespace.
type NamespaceConfig struct {
	MaxSize int           `yaml:"max_size" validate:"gt=0"`
	TTL     time.Duration `yaml:"ttl" validate:"gt=0"`
}

type CacheConfig struct {
	DefaultTTL     time.Duration              `yaml:"default_ttl" validate:"gt=0"`
	DefaultMaxSize int                        `yaml:"default_max_size" validate:"gt=0"`
	SweepInterval  time.Duration              `yaml:"sweep_interval" validate:"gt=0"`
	Namespaces     map[string]NamespaceConfig `yaml:"namespaces" validate:"dive"`
	// Coalesce enables single-flight de-duplication of concurrent misses.
	Coalesce bool `yaml:"coalesce"`

	MappingsTTL  time.Duration `yaml:"mappings_ttl" validate:"gt=0"`
	CountsTTL    time.Duration `yaml:"counts_ttl" validate:"gt=0"`
	StatsTTL     time.Duration `yaml:"stats_ttl" validate:"gt=0"`
	SizesTTL     time.Duration `yaml:"sizes_ttl" validate:"gt=0"`
	GrowthTTL    time.Duration `yaml:"growth_ttl" validate:"gt=0"`
	DashboardTTL time.Duration `yaml:"dashboard_ttl" validate:"gt=0"`
}

// AdaptiveConfig tunes the additive inter-batch delay.
type AdaptiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	MinDelay      time.Duration `yaml:"min_delay" validate:"gte=0"`
	MaxDelay      time.Duration `yaml:"max_delay" validate:"gte=0"`
	IncreaseStep  time.Duration `yaml:"increase_step" validate:"gte=0"`
	DecreaseStep  time.Duration `yaml:"decrease_step" validate:"gte=0"`
	SlowThreshold time.Duration `yaml:"slow_threshold" validate:"gt=0"`
	FastThreshold time.Duration `yaml:"fast_threshold" validate:"gte=0"`
}

type FanOutConfig struct {
	CountBatchSize       int            `yaml:"count_batch_size" validate:"gte=1,lte=100"`
	StatsBatchSize       int            `yaml:"stats_batch_size" validate:"gte=1,lte=100"`
	BatchDelay           time.Duration  `yaml:"batch_delay" validate:"gte=0"`
	MaxConcurrentBatches int            `yaml:"max_concurrent_batches" validate:"gte=1"`
	ItemTimeout          time.Duration  `yaml:"item_timeout" validate:"gt=0"`
	Adaptive             AdaptiveConfig `yaml:"adaptive"`
}

type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold" validate:"gte=1"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" validate:"gt=0"`
	HalfOpenRequests uint32        `yaml:"half_open_requests" validate:"gte=1"`
}

type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay time.Duration `yaml:"retry_delay" validate:"gte=0"`
	Patterns   []string      `yaml:"patterns"`
}

type ReportingConfig struct {
	Timezone        string `yaml:"timezone" validate:"required"`
	TimestampColumn string `yaml:"timestamp_column" validate:"required"`
	TimestampUnit   string `yaml:"timestamp_unit" validate:"oneof=seconds milliseconds datetime"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true"`
	Channel string `yaml:"channel" validate:"required_if=Enabled true"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
	Insecure    bool    `yaml:"insecure"`
}

type CloudWatchConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Namespace string        `yaml:"namespace" validate:"required_if=Enabled true"`
	Region    string        `yaml:"region"`
	Interval  time.Duration `yaml:"interval" validate:"gte=0"`
}

type ObservabilityConfig struct {
	LogLevel       string           `yaml:"log_level" validate:"oneof=debug info warn error"`
	MetricsEnabled bool             `yaml:"metrics_enabled"`
	Tracing        TracingConfig    `yaml:"tracing"`
	CloudWatch     CloudWatchConfig `yaml:"cloudwatch"`
}

// Default returns the reference configuration: a two-connection replica
// pool and the fan-out tuning measured against it.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
		},
		Replica: ReplicaConfig{
			MaxOpenConns:    2,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Mappings: MappingsConfig{MaxConns: 5},
		Cache: CacheConfig{
			DefaultTTL:     5 * time.Minute,
			DefaultMaxSize: 1000,
			SweepInterval:  time.Minute,
			Namespaces: map[string]NamespaceConfig{
				"tables":    {MaxSize: 500, TTL: 3 * time.Minute},
				"clients":   {MaxSize: 200, TTL: 30 * time.Second},
				"dashboard": {MaxSize: 100, TTL: 2 * time.Minute},
				"analytics": {MaxSize: 300, TTL: 5 * time.Minute},
			},
			Coalesce:     true,
			MappingsTTL:  30 * time.Second,
			CountsTTL:    3 * time.Minute,
			StatsTTL:     2 * time.Minute,
			SizesTTL:     10 * time.Minute,
			GrowthTTL:    3 * time.Minute,
			DashboardTTL: 2 * time.Minute,
		},
		FanOut: FanOutConfig{
			CountBatchSize:       5,
			StatsBatchSize:       2,
			BatchDelay:           300 * time.Millisecond,
			MaxConcurrentBatches: 1,
			ItemTimeout:          10 * time.Second,
			Adaptive: AdaptiveConfig{
				Enabled:       true,
				MinDelay:      100 * time.Millisecond,
				MaxDelay:      time.Second,
				IncreaseStep:  100 * time.Millisecond,
				DecreaseStep:  50 * time.Millisecond,
				SlowThreshold: 2 * time.Second,
				FastThreshold: 500 * time.Millisecond,
			},
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			HalfOpenRequests: 1,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			RetryDelay: time.Second,
			Patterns:   []string{"Queue limit"},
		},
		Reporting: ReportingConfig{
			Timezone:        "Asia/Kolkata",
			TimestampColumn: "created_at_ts",
			TimestampUnit:   UnitSeconds,
		},
		Redis: RedisConfig{Channel: "analytics:cache:invalidate"},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
			Tracing: TracingConfig{
				ServiceName: "leads-analytics",
				SampleRate:  0.1,
			},
			CloudWatch: CloudWatchConfig{
				Namespace: "LeadsAnalytics/Cache",
				Interval:  time.Minute,
			},
		},
	}
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules the tag
// validator cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.Config(apperrors.CodeInvalidConfig, "invalid configuration").
			WithCause(err).Build()
	}

	var problems []string
	a := c.FanOut.Adaptive
	if a.MinDelay > a.MaxDelay {
		problems = append(problems, "fanout.adaptive.min_delay exceeds max_delay")
	}
	if a.FastThreshold >= a.SlowThreshold {
		problems = append(problems, "fanout.adaptive.fast_threshold must be below slow_threshold")
	}
	for name := range c.Cache.Namespaces {
		if name == "" || strings.Contains(name, ":") {
			problems = append(problems, fmt.Sprintf("cache namespace %q must be non-empty and must not contain ':'", name))
		}
	}
	if _, err := time.LoadLocation(c.Reporting.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("reporting.timezone %q: %v", c.Reporting.Timezone, err))
	}
	if c.Environment == Production && c.Replica.DSN == "" {
		problems = append(problems, "replica.dsn is required in production")
	}

	if len(problems) > 0 {
		return apperrors.Config(apperrors.CodeInvalidConfig, "invalid configuration").
			WithDetails(strings.Join(problems, "; ")).Build()
	}
	return nil
}

// Location returns the reporting timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Reporting.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}
