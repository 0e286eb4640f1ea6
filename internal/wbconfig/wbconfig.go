// Package wbconfig provides layered configuration for the waybackctl
// command-line front end. Library (Client/Session) construction never
// imports this package: core usage takes fixed, explicit configuration
// at construction time.
package wbconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML on-disk configuration shape.
type FileConfig struct {
	LogLevel     string      `yaml:"logLevel,omitempty"`
	CacheBackend string      `yaml:"cacheBackend,omitempty"` // "memory", "redis", "badger", "none"
	CacheDir     string      `yaml:"cacheDir,omitempty"`
	RedisAddr    string      `yaml:"redisAddr,omitempty"`
	RateLimits   RateLimits  `yaml:"rateLimits,omitempty"`
	Timeout      string      `yaml:"timeout,omitempty"`
	Serve        ServeConfig `yaml:"serve,omitempty"`
}

// RateLimits holds per-bucket request rates read from the defaults and
// the YAML file. Nothing in this module applies them: a Session always
// uses its own built-in bucket rates.
type RateLimits struct {
	TimemapPerMinute float64 `yaml:"timemapPerMinute,omitempty"`
	CDXPerMinute     float64 `yaml:"cdxPerMinute,omitempty"`
	MementoPerMinute float64 `yaml:"mementoPerMinute,omitempty"`
}

// ServeConfig configures the waybackctl serve subcommand's HTTP front end.
type ServeConfig struct {
	Addr         string `yaml:"addr,omitempty"`
	InboundRPS   int    `yaml:"inboundRPS,omitempty"`
	InboundBurst int    `yaml:"inboundBurst,omitempty"`
}

// AppConfig is the fully resolved configuration after defaults, file, and
// environment overrides are merged.
type AppConfig struct {
	LogLevel     string
	CacheBackend string
	CacheDir     string
	RedisAddr    string
	RateLimits   RateLimits
	Timeout      time.Duration
	Serve        ServeConfig
}

// Defaults returns the baseline configuration before any file or
// environment overrides are applied.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:     "info",
		CacheBackend: "memory",
		CacheDir:     "./wayback-cache",
		RateLimits: RateLimits{
			TimemapPerMinute: 80,
			CDXPerMinute:     48,
			MementoPerMinute: 480,
		},
		Timeout: 30 * time.Second,
		Serve: ServeConfig{
			Addr:         ":8080",
			InboundRPS:   10,
			InboundBurst: 20,
		},
	}
}

// Load builds an AppConfig from defaults, an optional YAML file at path
// (skipped if path is empty or does not exist), and environment variable
// overrides, in that order of increasing precedence.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return AppConfig{}, fmt.Errorf("wbconfig: reading %s: %w", path, err)
			}
		} else {
			var file FileConfig
			if err := yaml.Unmarshal(data, &file); err != nil {
				return AppConfig{}, fmt.Errorf("wbconfig: parsing %s: %w", path, err)
			}
			mergeFile(&cfg, file)
		}
	}

	if err := mergeEnv(&cfg); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func mergeFile(cfg *AppConfig, file FileConfig) {
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.CacheBackend != "" {
		cfg.CacheBackend = file.CacheBackend
	}
	if file.CacheDir != "" {
		cfg.CacheDir = file.CacheDir
	}
	if file.RedisAddr != "" {
		cfg.RedisAddr = file.RedisAddr
	}
	if file.RateLimits.TimemapPerMinute != 0 {
		cfg.RateLimits.TimemapPerMinute = file.RateLimits.TimemapPerMinute
	}
	if file.RateLimits.CDXPerMinute != 0 {
		cfg.RateLimits.CDXPerMinute = file.RateLimits.CDXPerMinute
	}
	if file.RateLimits.MementoPerMinute != 0 {
		cfg.RateLimits.MementoPerMinute = file.RateLimits.MementoPerMinute
	}
	if file.Timeout != "" {
		if d, err := time.ParseDuration(file.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if file.Serve.Addr != "" {
		cfg.Serve.Addr = file.Serve.Addr
	}
	if file.Serve.InboundRPS != 0 {
		cfg.Serve.InboundRPS = file.Serve.InboundRPS
	}
	if file.Serve.InboundBurst != 0 {
		cfg.Serve.InboundBurst = file.Serve.InboundBurst
	}
}

func mergeEnv(cfg *AppConfig) error {
	if v := os.Getenv("WAYBACK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("WAYBACK_CACHE_BACKEND"); v != "" {
		cfg.CacheBackend = v
	}
	if v := os.Getenv("WAYBACK_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("WAYBACK_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("WAYBACK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("wbconfig: WAYBACK_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("WAYBACK_SERVE_ADDR"); v != "" {
		cfg.Serve.Addr = v
	}
	if v := os.Getenv("WAYBACK_SERVE_INBOUND_RPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("wbconfig: WAYBACK_SERVE_INBOUND_RPS: %w", err)
		}
		cfg.Serve.InboundRPS = n
	}
	return nil
}
