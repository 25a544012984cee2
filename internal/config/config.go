package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/manenim/distributed-rate-limiter/pkg/limiter"
	"github.com/manenim/distributed-rate-limiter/pkg/redisconn"
	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
}

type Observability struct {
	LogLevel         string `yaml:"log_level" env:"LOG_LEVEL"`       // "debug","info","warn","error"
	MetricsPath      string `yaml:"metrics_path" env:"METRICS_PATH"` // e.g. "/metrics"
	MetricsNamespace string `yaml:"metrics_namespace" env:"METRICS_NAMESPACE"`
}

type TokenBucket struct {
	Capacity   int64   `yaml:"capacity" env:"RATE_LIMIT_BUCKET_CAPACITY"`
	RefillRate float64 `yaml:"refill_rate" env:"RATE_LIMIT_BUCKET_REFILL_RATE"`
}

type Limiter struct {
	Strategy     string        `yaml:"strategy" env:"RATE_LIMIT_STRATEGY"`
	MaxRequests  int64         `yaml:"max_requests" env:"RATE_LIMIT_MAX_REQUESTS"`
	Window       time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW"`
	BlockOnLimit bool          `yaml:"block_on_limit" env:"RATE_LIMIT_BLOCK_ON_LIMIT"`
	ErrorMessage string        `yaml:"error_message" env:"RATE_LIMIT_ERROR_MESSAGE"`
	Prefix       string        `yaml:"prefix" env:"RATE_LIMIT_PREFIX"`
	Timeout      time.Duration `yaml:"timeout" env:"RATE_LIMIT_TIMEOUT"`
	FailClosed   bool          `yaml:"fail_closed" env:"RATE_LIMIT_FAIL_CLOSED"`
	TokenBucket  TokenBucket   `yaml:"token_bucket"`
}

type Root struct {
	Server        Server           `yaml:"server"`
	Observability Observability    `yaml:"observability"`
	Redis         redisconn.Config `yaml:"redis"`
	Limiter       Limiter          `yaml:"limiter"`
}

// Default returns the configuration used for anything neither the YAML file
// nor the environment sets.
func Default() Root {
	return Root{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Observability: Observability{
			LogLevel:         "info",
			MetricsPath:      "/metrics",
			MetricsNamespace: "gateway",
		},
		Redis: redisconn.DefaultConfig(),
		Limiter: Limiter{
			Strategy:     string(limiter.DefaultStrategy),
			MaxRequests:  100,
			Window:       time.Minute,
			BlockOnLimit: true,
			ErrorMessage: limiter.DefaultErrorMessage,
			Prefix:       limiter.DefaultPrefix,
			Timeout:      100 * time.Millisecond,
		},
	}
}

// Load layers configuration: defaults, then the YAML file at path (skipped
// when path is empty), then environment variables. Each envFile is loaded
// into the environment first if it exists; variables already set win.
func Load(path string, envFiles ...string) (*Root, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if _, err := cfg.Limiter.Config(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Config converts the limiter section into a validated limiter.Config.
func (l Limiter) Config() (limiter.Config, error) {
	s, err := limiter.ParseStrategy(l.Strategy)
	if err != nil {
		return limiter.Config{}, err
	}
	cfg := limiter.Config{
		MaxRequests: l.MaxRequests,
		Window:      l.Window,
		Strategy:    s,
	}
	if l.TokenBucket.Capacity > 0 || l.TokenBucket.RefillRate > 0 {
		cfg.TokenBucket = &limiter.TokenBucketConfig{
			Capacity:   l.TokenBucket.Capacity,
			RefillRate: l.TokenBucket.RefillRate,
		}
	}
	return cfg, cfg.Validate()
}

// Options returns the limiter options this section configures.
func (l Limiter) Options() []limiter.Option {
	return []limiter.Option{
		limiter.WithBlockOnLimit(l.BlockOnLimit),
		limiter.WithErrorMessage(l.ErrorMessage),
		limiter.WithPrefix(l.Prefix),
		limiter.WithTimeout(l.Timeout),
	}
}
