// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Frontier FrontierConfig `mapstructure:"frontier"`
	Output   OutputConfig   `mapstructure:"output"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs what is crawled and how politely.
type CrawlerConfig struct {
	UserAgent       string `mapstructure:"user_agent"`
	DelayMs         int    `mapstructure:"delay_ms"`
	BaseURL         string `mapstructure:"base_url"`
	RegionID        int    `mapstructure:"region_id"`
	ListingTemplate string `mapstructure:"listing_template"`
	StopKey         string `mapstructure:"stop_key"`
}

// HTTPConfig configures HTTP client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds  int   `mapstructure:"timeout_seconds"`
	MaxRetries      int   `mapstructure:"max_retries"`
	BackoffFactorMs int   `mapstructure:"backoff_factor_ms"`
	BackoffMaxMs    int   `mapstructure:"backoff_max_ms"`
	RetryStatuses   []int `mapstructure:"retry_statuses"`
	// RequestsPerSecond caps requests per host; zero means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// FrontierConfig locates the checkpoint and boundary files.
type FrontierConfig struct {
	CheckpointPath string `mapstructure:"checkpoint_path"`
	BoundaryPath   string `mapstructure:"boundary_path"`
}

// OutputConfig sets where artifacts are written and mirrored.
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// MetricsConfig enables the metrics listener when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3")
	v.SetDefault("crawler.delay_ms", 0)
	v.SetDefault("crawler.base_url", "https://www.openrice.com")
	v.SetDefault("crawler.region_id", 1)
	v.SetDefault("crawler.listing_template", "https://www.openrice.com/en/hongkong/restaurants?regionId={region}&landmarkId={landmark}&tabIndex=0")
	v.SetDefault("crawler.stop_key", "q")
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_retries", 5)
	v.SetDefault("http.backoff_factor_ms", 1000)
	v.SetDefault("http.backoff_max_ms", 120000)
	v.SetDefault("http.retry_statuses", crawler.DefaultRetryStatuses)
	v.SetDefault("http.requests_per_second", 0.0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("frontier.checkpoint_path", "url.txt")
	v.SetDefault("frontier.boundary_path", "last_landmark.txt")
	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.gcs_prefix", "openrice")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawler.UserAgent) == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Crawler.DelayMs < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	if u, err := url.Parse(c.Crawler.BaseURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("crawler.base_url must be an absolute URL")
	}
	if !strings.Contains(c.Crawler.ListingTemplate, "{landmark}") {
		return fmt.Errorf("crawler.listing_template must contain {landmark}")
	}
	if strings.TrimSpace(c.Crawler.StopKey) == "" {
		return fmt.Errorf("crawler.stop_key must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.BackoffFactorMs <= 0 {
		return fmt.Errorf("http.backoff_factor_ms must be > 0")
	}
	if c.HTTP.BackoffMaxMs < c.HTTP.BackoffFactorMs {
		return fmt.Errorf("http.backoff_max_ms must be >= http.backoff_factor_ms")
	}
	for _, s := range c.HTTP.RetryStatuses {
		if s < 100 || s > 599 {
			return fmt.Errorf("http.retry_statuses must be HTTP status codes, got %d", s)
		}
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.HTTP.Burst < 1 {
		return fmt.Errorf("http.burst must be >= 1")
	}
	if strings.TrimSpace(c.Frontier.CheckpointPath) == "" {
		return fmt.Errorf("frontier.checkpoint_path must be set")
	}
	if strings.TrimSpace(c.Frontier.BoundaryPath) == "" {
		return fmt.Errorf("frontier.boundary_path must be set")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir must be set")
	}
	return nil
}

// Timeout returns the per-request HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Delay returns the pause between listing URLs.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}

// RetryConfig converts the HTTP section into a retry policy configuration.
func (c Config) RetryConfig() crawler.RetryConfig {
	return crawler.RetryConfig{
		MaxRetries:    c.HTTP.MaxRetries,
		BackoffFactor: time.Duration(c.HTTP.BackoffFactorMs) * time.Millisecond,
		BackoffMax:    time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond,
		Statuses:      c.HTTP.RetryStatuses,
	}
}
