package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/manenim/distributed-rate-limiter/pkg/limiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default().Limiter, cfg.Limiter)
	assert.Equal(t, Default().Server, cfg.Server)

	lc, err := cfg.Limiter.Config()
	require.NoError(t, err)
	assert.Equal(t, limiter.SlidingWindow, lc.Strategy)
	assert.Nil(t, lc.TokenBucket)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  addr: ":9090"
observability:
  log_level: debug
redis:
  url: redis://cache:6379/1
  retry_attempts: 5
limiter:
  strategy: token-bucket
  max_requests: 20
  window: 10s
  block_on_limit: false
  token_bucket:
    capacity: 40
    refill_rate: 2.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.ConnectionURL)
	assert.Equal(t, 5, cfg.Redis.RetryAttempts)
	assert.False(t, cfg.Limiter.BlockOnLimit)

	lc, err := cfg.Limiter.Config()
	require.NoError(t, err)
	assert.Equal(t, limiter.Config{
		MaxRequests: 20,
		Window:      10 * time.Second,
		Strategy:    limiter.TokenBucket,
		TokenBucket: &limiter.TokenBucketConfig{Capacity: 40, RefillRate: 2.5},
	}, lc)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
limiter:
  strategy: token-bucket
  max_requests: 20
`)
	t.Setenv("RATE_LIMIT_STRATEGY", "fixed-window")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("REDIS_URL", "rediss://prod:6380/0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fixed-window", cfg.Limiter.Strategy)
	assert.Equal(t, int64(20), cfg.Limiter.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Limiter.Window)
	assert.Equal(t, "rediss://prod:6380/0", cfg.Redis.ConnectionURL)
}

func TestLoad_EnvFile(t *testing.T) {
	dotenv := writeFile(t, ".env", "RATE_LIMIT_PREFIX=svc:rl:\nLOG_LEVEL=warn\n")
	t.Cleanup(func() {
		os.Unsetenv("RATE_LIMIT_PREFIX")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load("", dotenv, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "svc:rl:", cfg.Limiter.Prefix)
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "config.yaml", "server: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_STRATEGY", "leaky-bucket")
		_, err := Load("")
		assert.ErrorIs(t, err, limiter.ErrUnknownStrategy)
	})

	t.Run("fractional window", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_WINDOW", "1500ms")
		_, err := Load("")
		assert.ErrorIs(t, err, limiter.ErrInvalidConfig)
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_MAX_REQUESTS", "lots")
		_, err := Load("")
		assert.Error(t, err)
	})
}
