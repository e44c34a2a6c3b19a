package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Tracing engines selectable through TRACING_ENGINE.
const (
	EngineNative = "native"
	EngineOTel   = "otel"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	GRPC      GRPCConfig      `yaml:"grpc" toml:"grpc"`
	Tracing   TracingConfig   `yaml:"tracing" toml:"tracing"`
	Queue     QueueConfig     `yaml:"queue" toml:"queue"`
	Payments  PaymentsConfig  `yaml:"payments" toml:"payments"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host" toml:"host"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	Port    string `envconfig:"GRPC_PORT" default:"50051" yaml:"port" toml:"port"`
	Enabled bool   `envconfig:"GRPC_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
}

// TracingConfig selects and sizes the tracing engine.
type TracingConfig struct {
	ServiceName string `envconfig:"TRACING_SERVICE" default:"tracectx" yaml:"service" toml:"service"`
	Engine      string `envconfig:"TRACING_ENGINE" default:"native" yaml:"engine" toml:"engine"`
	SpanBuffer  int    `envconfig:"TRACING_SPAN_BUFFER" default:"1000" yaml:"span_buffer" toml:"span_buffer"`
	Enabled     bool   `envconfig:"TRACING_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
	// SkipPaths are doublestar globs of request paths served without a span
	SkipPaths []string `envconfig:"TRACING_SKIP_PATHS" default:"/health,/metrics/**,/debug/**" yaml:"skip_paths" toml:"skip_paths"`
}

// QueueConfig sizes the in-process message broker.
type QueueConfig struct {
	Workers  int `envconfig:"QUEUE_WORKERS" default:"4" yaml:"workers" toml:"workers"`
	Capacity int `envconfig:"QUEUE_CAPACITY" default:"1024" yaml:"capacity" toml:"capacity"`
	// CompressAbove zstd-compresses message bodies larger than this many
	// bytes; zero disables compression.
	CompressAbove int `envconfig:"QUEUE_COMPRESS_ABOVE" default:"4096" yaml:"compress_above" toml:"compress_above"`
}

// PaymentsConfig points the order service at a payment gateway.
type PaymentsConfig struct {
	// URL of the gateway; orders are accepted without charging when empty
	URL     string `envconfig:"PAYMENTS_URL" yaml:"url" toml:"url"`
	Retries int    `envconfig:"PAYMENTS_RETRIES" default:"2" yaml:"retries" toml:"retries"`
}

// RateLimitConfig holds per-client rate limiting configuration.
type RateLimitConfig struct {
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst" toml:"burst"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile loads configuration from a YAML or TOML file, chosen by
// extension. Keys missing from the file keep their default values;
// environment variables are not read.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config file format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Tracing.Engine) {
	case EngineNative, EngineOTel:
		c.Tracing.Engine = strings.ToLower(c.Tracing.Engine)
	default:
		return fmt.Errorf("invalid tracing engine %q: want %q or %q", c.Tracing.Engine, EngineNative, EngineOTel)
	}
	if c.Tracing.SpanBuffer <= 0 {
		return fmt.Errorf("tracing span buffer must be positive, got %d", c.Tracing.SpanBuffer)
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue workers must be positive, got %d", c.Queue.Workers)
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.Queue.Capacity)
	}
	if c.Queue.CompressAbove < 0 {
		return fmt.Errorf("queue compression threshold cannot be negative, got %d", c.Queue.CompressAbove)
	}
	if c.Payments.Retries < 0 {
		return fmt.Errorf("payment retries cannot be negative, got %d", c.Payments.Retries)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit needs positive rps and burst, got %d/%d", c.RateLimit.RequestsPerSecond, c.RateLimit.Burst)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		GRPC: GRPCConfig{
			Port:    "50051",
			Enabled: true,
		},
		Tracing: TracingConfig{
			ServiceName: "tracectx",
			Engine:      EngineNative,
			SpanBuffer:  1000,
			Enabled:     true,
			SkipPaths:   []string{"/health", "/metrics/**", "/debug/**"},
		},
		Queue: QueueConfig{
			Workers:       4,
			Capacity:      1024,
			CompressAbove: 4096,
		},
		Payments: PaymentsConfig{
			Retries: 2,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 100,
			Burst:             200,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
