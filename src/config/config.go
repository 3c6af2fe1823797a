package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port                  string        `yaml:"port"`
	ShutdownTimeout       time.Duration `yaml:"shutdown_timeout"`
	MaxConcurrentRequests int64         `yaml:"max_concurrent_requests"`
	MaintenanceMode       bool          `yaml:"maintenance_mode"`
	RequestLogging        bool          `yaml:"request_logging"`
}

type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Max     int           `yaml:"max"`
	Window  time.Duration `yaml:"window"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"` // "json" or "pretty"
}

type BookConfig struct {
	DefaultDepth  int    `yaml:"default_depth"`
	MaxDepth      int    `yaml:"max_depth"`
	DefaultSymbol string `yaml:"default_symbol"`
}

type AnalyticsConfig struct {
	DepthLevels    int     `yaml:"depth_levels"`
	StressVolume   float64 `yaml:"stress_volume"`
	ImpactQuantity float64 `yaml:"impact_quantity"`
}

type MetricsConfig struct {
	MaxLatencies int `yaml:"max_latencies"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Book      BookConfig      `yaml:"book"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

func Default() Config {
	var c Config
	c.Server.Port = "8080"
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.RequestLogging = true
	c.RateLimit.Enabled = true
	c.RateLimit.Max = 100
	c.RateLimit.Window = time.Second
	c.Logging.Level = "info"
	c.Logging.Format = "json"
	c.Book.DefaultDepth = 10
	c.Book.MaxDepth = 1000
	c.Analytics.DepthLevels = 20
	c.Analytics.StressVolume = 10000
	c.Analytics.ImpactQuantity = 100
	c.Metrics.MaxLatencies = 10000
	return c
}

// Load applies, in order: defaults, the YAML file named by ANALYTICS_CONFIG,
// and environment overrides. Malformed env values are ignored; a missing or
// malformed config file is an error.
func Load() (Config, error) {
	c := Default()

	if path := os.Getenv("ANALYTICS_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&c)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = strings.TrimPrefix(v, ":")
	}
	envDuration("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	envInt64("MAX_CONCURRENT_REQUESTS", &c.Server.MaxConcurrentRequests)
	if os.Getenv("MAINTENANCE_MODE") == "1" {
		c.Server.MaintenanceMode = true
	}
	if os.Getenv("REQUEST_LOGGING_DISABLED") == "1" {
		c.Server.RequestLogging = false
	}

	if os.Getenv("RATE_LIMIT_DISABLED") == "1" {
		c.RateLimit.Enabled = false
	}
	envInt("RATE_LIMIT_MAX", &c.RateLimit.Max)
	envDuration("RATE_LIMIT_WINDOW", &c.RateLimit.Window)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	envInt("ORDERBOOK_DEFAULT_DEPTH", &c.Book.DefaultDepth)
	envInt("ORDERBOOK_MAX_DEPTH", &c.Book.MaxDepth)
	if v := os.Getenv("DEFAULT_SYMBOL"); v != "" {
		c.Book.DefaultSymbol = v
	}

	envInt("DEPTH_LEVELS", &c.Analytics.DepthLevels)
	envFloat("LCR_STRESS_VOLUME", &c.Analytics.StressVolume)
	envFloat("IMPACT_QUANTITY", &c.Analytics.ImpactQuantity)

	envInt("METRICS_MAX_LATENCIES", &c.Metrics.MaxLatencies)
}

func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return &ValidationError{Field: "server.port", Message: "must be numeric"}
	}
	if c.Server.ShutdownTimeout <= 0 {
		return &ValidationError{Field: "server.shutdown_timeout", Message: "must be positive"}
	}
	if c.RateLimit.Enabled && (c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0) {
		return &ValidationError{Field: "rate_limit", Message: "max and window must be positive"}
	}
	if c.Book.DefaultDepth <= 0 || c.Book.MaxDepth <= 0 {
		return &ValidationError{Field: "book", Message: "depths must be positive"}
	}
	if c.Book.DefaultDepth > c.Book.MaxDepth {
		return &ValidationError{Field: "book.default_depth", Message: "must not exceed book.max_depth"}
	}
	if c.Analytics.DepthLevels <= 0 {
		return &ValidationError{Field: "analytics.depth_levels", Message: "must be positive"}
	}
	if c.Analytics.StressVolume <= 0 || c.Analytics.ImpactQuantity <= 0 {
		return &ValidationError{Field: "analytics", Message: "stress_volume and impact_quantity must be positive"}
	}
	if c.Metrics.MaxLatencies <= 0 {
		return &ValidationError{Field: "metrics.max_latencies", Message: "must be positive"}
	}
	return nil
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Field + " " + e.Message
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}
