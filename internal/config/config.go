// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. BANKCRAWLER_HTTP_TIMEOUT_SECONDS.
const EnvPrefix = "BANKCRAWLER"

// Storage backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures all knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlerConfig governs the worker pool and the source list.
type CrawlerConfig struct {
	SourcesFile        string `mapstructure:"sources_file"`
	OutputDir          string `mapstructure:"output_dir"`
	Concurrency        int    `mapstructure:"concurrency"`
	ProductConcurrency int    `mapstructure:"product_concurrency"`
	UserAgent          string `mapstructure:"user_agent"`
}

// HTTPConfig configures request timeouts and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxBodyBytes     int `mapstructure:"max_body_bytes"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// StorageConfig selects where documents are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig enables the Prometheus scrape endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// NewViper returns a Viper instance with defaults and environment binding.
// Callers may bind CLI flags onto it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads the optional config file at path into v and returns the
// validated Config. A .env file in the working directory is applied first.
func Load(v *viper.Viper, path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	if v == nil {
		v = NewViper()
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.sources_file", "data-holder.json")
	v.SetDefault("crawler.output_dir", "data")
	v.SetDefault("crawler.concurrency", 10)
	v.SetDefault("crawler.product_concurrency", 4)
	v.SetDefault("crawler.user_agent", "bank-product-crawler/0.1")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_body_bytes", 32<<20)
	v.SetDefault("http.max_retries", 0)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawler.SourcesFile) == "" {
		return fmt.Errorf("crawler.sources_file must be set")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.ProductConcurrency <= 0 {
		return fmt.Errorf("crawler.product_concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.BackoffInitialMs < 0 || c.HTTP.BackoffMaxMs < c.HTTP.BackoffInitialMs {
		return fmt.Errorf("http backoff must satisfy 0 <= backoff_initial_ms <= backoff_max_ms")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Crawler.OutputDir) == "" {
			return fmt.Errorf("crawler.output_dir must be set for the local backend")
		}
	case BackendGCS:
		if strings.TrimSpace(c.Storage.GCSBucket) == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend %q is not one of local, gcs, memory", c.Storage.Backend)
	}
	return nil
}

// RequestTimeout is the per-request HTTP budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial is the first retry delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps the retry delay.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
