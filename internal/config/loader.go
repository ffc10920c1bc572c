package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileLoader decodes one configuration file format.
type FileLoader interface {
	Load(r io.Reader, target any) error
	Extensions() []string
}

// YAMLLoader decodes YAML files. Durations are written as Go duration
// strings ("300ms", "3m").
type YAMLLoader struct{}

func (YAMLLoader) Load(r io.Reader, target any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (YAMLLoader) Extensions() []string { return []string{"yaml", "yml"} }

// Loader resolves configuration from layered sources:
//
//  1. code defaults
//  2. base.yaml
//  3. {environment}.yaml
//  4. local.yaml (development only)
//  5. environment variables
type Loader struct {
	dir     string
	env     Environment
	loaders []FileLoader
	lookup  func(string) (string, bool)
}

// NewLoader creates a loader reading files from dir. The environment is
// taken from ENVIRONMENT when env is empty.
func NewLoader(dir string, env Environment) *Loader {
	if dir == "" {
		dir = "config"
	}
	return &Loader{
		dir:     dir,
		env:     env,
		loaders: []FileLoader{YAMLLoader{}},
		lookup:  os.LookupEnv,
	}
}

// Load reads every layer and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()
	cfg.LoadedFrom = []string{"defaults"}

	env := l.env
	if env == "" {
		if v, ok := l.lookup("ENVIRONMENT"); ok && v != "" {
			env = Environment(strings.ToLower(v))
		} else {
			env = Development
		}
	}
	cfg.Environment = env

	layers := []string{"base", string(env)}
	if env == Development {
		layers = append(layers, "local")
	}
	for _, name := range layers {
		path, err := l.loadFile(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("load %s config: %w", name, err)
		}
		if path != "" {
			cfg.LoadedFrom = append(cfg.LoadedFrom, path)
		}
	}
	// A file may not move the process into another environment.
	cfg.Environment = env

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Dir returns the directory the loader reads files from.
func (l *Loader) Dir() string { return l.dir }

func (l *Loader) loadFile(name string, cfg *Config) (string, error) {
	for _, fl := range l.loaders {
		for _, ext := range fl.Extensions() {
			path := filepath.Join(l.dir, name+"."+ext)
			f, err := os.Open(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return "", err
			}
			err = fl.Load(f, cfg)
			f.Close()
			if err != nil {
				return "", fmt.Errorf("%s: %w", path, err)
			}
			return path, nil
		}
	}
	return "", nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := l.lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	integer := func(key string, dst *int) {
		if v, ok := l.lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := l.lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := l.lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}

	str("SERVER_ADDRESS", &cfg.Server.Address)
	str("REPLICA_DSN", &cfg.Replica.DSN)
	str("REPLICA_SCHEMA", &cfg.Replica.Schema)
	integer("REPLICA_MAX_OPEN_CONNS", &cfg.Replica.MaxOpenConns)
	str("MAPPINGS_DSN", &cfg.Mappings.DSN)

	integer("FANOUT_BATCH_SIZE", &cfg.FanOut.CountBatchSize)
	integer("FANOUT_STATS_BATCH_SIZE", &cfg.FanOut.StatsBatchSize)
	integer("FANOUT_MAX_CONCURRENT_BATCHES", &cfg.FanOut.MaxConcurrentBatches)
	duration("FANOUT_BATCH_DELAY", &cfg.FanOut.BatchDelay)
	duration("FANOUT_ITEM_TIMEOUT", &cfg.FanOut.ItemTimeout)
	boolean("FANOUT_ADAPTIVE", &cfg.FanOut.Adaptive.Enabled)

	boolean("CACHE_COALESCE", &cfg.Cache.Coalesce)
	str("REPORTING_TIMEZONE", &cfg.Reporting.Timezone)
	str("REPORTING_TIMESTAMP_UNIT", &cfg.Reporting.TimestampUnit)

	str("REDIS_URL", &cfg.Redis.URL)
	if cfg.Redis.URL != "" {
		cfg.Redis.Enabled = true
	}
	boolean("REDIS_ENABLED", &cfg.Redis.Enabled)

	str("LOG_LEVEL", &cfg.Observability.LogLevel)
	boolean("METRICS_ENABLED", &cfg.Observability.MetricsEnabled)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Observability.Tracing.Endpoint)
	boolean("TRACING_ENABLED", &cfg.Observability.Tracing.Enabled)
	boolean("CLOUDWATCH_ENABLED", &cfg.Observability.CloudWatch.Enabled)
	str("AWS_REGION", &cfg.Observability.CloudWatch.Region)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment variables: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load is a convenience wrapper reading from CONFIG_DIR (default "config").
func Load() (*Config, error) {
	return NewLoader(os.Getenv("CONFIG_DIR"), "").Load()
}
