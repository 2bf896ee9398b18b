package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds calcd listener settings
type ServerConfig struct {
	GRPCAddr    string        `json:"grpc_addr" yaml:"grpc_addr"`
	MetricsAddr string        `json:"metrics_addr" yaml:"metrics_addr"`
	Latency     time.Duration `json:"latency" yaml:"latency"`
	// Coalesce shares one computation among concurrent identical requests.
	Coalesce bool `json:"coalesce" yaml:"coalesce"`
}

// ClientConfig holds settings for the calc driver
type ClientConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

// InvokerConfig sizes the background scheduler. Zero workers means one
// goroutine per invocation.
type InvokerConfig struct {
	Workers int `json:"workers" yaml:"workers"`
}

// RedisConfig holds Redis connection settings for completion fan-out
type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Topic    string `json:"topic" yaml:"topic"`
}

// LoggingConfig holds structured logging settings
type LoggingConfig struct {
	Format string `json:"format" yaml:"format"` // text or json
	Level  string `json:"level" yaml:"level"`
}

// TracingConfig holds OpenTelemetry tracing settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Exporter    string  `json:"exporter" yaml:"exporter"` // otlp-http or noop
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	ServiceName string  `json:"service_name" yaml:"service_name"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// ObservabilityConfig groups logging, tracing and metrics
type ObservabilityConfig struct {
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// DaemonConfig holds daemon-specific settings
type DaemonConfig struct {
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Server        ServerConfig        `json:"server" yaml:"server"`
	Client        ClientConfig        `json:"client" yaml:"client"`
	Invoker       InvokerConfig       `json:"invoker" yaml:"invoker"`
	Redis         RedisConfig         `json:"redis" yaml:"redis"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	Daemon        DaemonConfig        `json:"daemon" yaml:"daemon"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCAddr:    ":9090",
			MetricsAddr: ":9091",
			Latency:     3 * time.Second,
		},
		Client: ClientConfig{
			Addr:         "localhost:9090",
			Timeout:      30 * time.Second,
			PollInterval: 250 * time.Millisecond,
		},
		Invoker: InvokerConfig{
			Workers: 0,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
			Topic:   "completions",
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Format: "text",
				Level:  "info",
			},
			Tracing: TracingConfig{
				Enabled:     false,
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "asynccalc",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "asynccalc",
			},
		},
		Daemon: DaemonConfig{
			LogLevel: "info",
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file on top of
// DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadFileInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFileInto overlays the file at path onto cfg, so settings the file
// omits keep their current values. The format is chosen by extension;
// durations in JSON are nanoseconds, YAML also accepts "3s".
func LoadFileInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CALC_GRPC_ADDR"); v != "" {
		cfg.Server.GRPCAddr = v
	}
	if v := os.Getenv("CALC_METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if d, ok := envDuration("CALC_LATENCY"); ok {
		cfg.Server.Latency = d
	}
	if v := os.Getenv("CALC_COALESCE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.Coalesce = b
		}
	}
	if v := os.Getenv("CALC_ADDR"); v != "" {
		cfg.Client.Addr = v
	}
	if d, ok := envDuration("CALC_TIMEOUT"); ok {
		cfg.Client.Timeout = d
	}
	if d, ok := envDuration("CALC_POLL_INTERVAL"); ok {
		cfg.Client.PollInterval = d
	}
	if v := os.Getenv("CALC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Invoker.Workers = n
		}
	}
	if v := os.Getenv("CALC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("CALC_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CALC_REDIS_TOPIC"); v != "" {
		cfg.Redis.Topic = v
	}
	if v := os.Getenv("CALC_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
		cfg.Observability.Logging.Level = v
	}
	if v := os.Getenv("CALC_LOG_FORMAT"); v != "" {
		cfg.Observability.Logging.Format = v
	}
	if v := os.Getenv("CALC_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
		cfg.Observability.Tracing.Enabled = true
	}
}

// Validate rejects settings the daemons cannot run with
func (c *Config) Validate() error {
	if c.Server.Latency < 0 {
		return fmt.Errorf("server.latency must not be negative")
	}
	if c.Client.PollInterval <= 0 {
		return fmt.Errorf("client.poll_interval must be positive")
	}
	if c.Invoker.Workers < 0 {
		return fmt.Errorf("invoker.workers must not be negative")
	}
	switch c.Observability.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("observability.logging.format: unknown format %q", c.Observability.Logging.Format)
	}
	return nil
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
