// Package config loads service settings from an optional YAML file,
// PATTERN_* environment variables and built-in defaults, in that order of
// precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PATTERN"

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Analytics AnalyticsConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	ResultTTL time.Duration
}

type AnalyticsConfig struct {
	Workers       int
	QueueSize     int
	MaxPoints     int
	MaxLagBuckets int
	HeatmapTarget int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
			MaxBodyBytes: 32 << 20,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  50,
			ResultTTL: 5 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			Workers:       4,
			QueueSize:     1000,
			MaxPoints:     5000,
			MaxLagBuckets: 96,
			HeatmapTarget: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration. An empty path or a missing file falls back to
// defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:         v.GetString("server.addr"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			IdleTimeout:  v.GetDuration("server.idle_timeout"),
			MaxBodyBytes: v.GetInt64("server.max_body_bytes"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("redis.addr"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			PoolSize:  v.GetInt("redis.pool_size"),
			ResultTTL: v.GetDuration("redis.result_ttl"),
		},
		Analytics: AnalyticsConfig{
			Workers:       v.GetInt("analytics.workers"),
			QueueSize:     v.GetInt("analytics.queue_size"),
			MaxPoints:     v.GetInt("analytics.max_points"),
			MaxLagBuckets: v.GetInt("analytics.max_lag_buckets"),
			HeatmapTarget: v.GetInt("analytics.heatmap_target"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.pool_size", d.Redis.PoolSize)
	v.SetDefault("redis.result_ttl", d.Redis.ResultTTL)

	v.SetDefault("analytics.workers", d.Analytics.Workers)
	v.SetDefault("analytics.queue_size", d.Analytics.QueueSize)
	v.SetDefault("analytics.max_points", d.Analytics.MaxPoints)
	v.SetDefault("analytics.max_lag_buckets", d.Analytics.MaxLagBuckets)
	v.SetDefault("analytics.heatmap_target", d.Analytics.HeatmapTarget)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, "server.max_body_bytes must be positive")
	}
	if c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required")
	}
	if c.Redis.ResultTTL <= 0 {
		errs = append(errs, "redis.result_ttl must be positive")
	}
	if c.Analytics.Workers < 1 || c.Analytics.Workers > 64 {
		errs = append(errs, fmt.Sprintf("analytics.workers must be between 1 and 64, got %d", c.Analytics.Workers))
	}
	if c.Analytics.QueueSize < 1 {
		errs = append(errs, "analytics.queue_size must be positive")
	}
	if c.Analytics.MaxPoints < 0 || c.Analytics.MaxLagBuckets < 0 || c.Analytics.HeatmapTarget < 0 {
		errs = append(errs, "analytics limits must be non-negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not json or console", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
