package redisconn

import "time"

// Config describes how to reach the Redis server backing the limiter.
// Environment variables override whatever was loaded before env parsing, so
// the tags carry no defaults; use DefaultConfig for those.
type Config struct {
	ConnectionURL  string        `yaml:"url" env:"REDIS_URL"`
	RetryAttempts  int           `yaml:"retry_attempts" env:"REDIS_RETRY_ATTEMPTS"`
	RetryInterval  time.Duration `yaml:"retry_interval" env:"REDIS_RETRY_INTERVAL"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"REDIS_CONNECT_TIMEOUT"`
	// ScanCount is the COUNT hint of each SCAN issued while resetting.
	ScanCount int64 `yaml:"scan_count" env:"REDIS_SCAN_COUNT"`
	// DeleteBatchSize bounds the keys removed per pipelined round trip.
	DeleteBatchSize int `yaml:"delete_batch_size" env:"REDIS_DELETE_BATCH_SIZE"`
}

func DefaultConfig() Config {
	return Config{
		ConnectionURL:   "redis://localhost:6379/0",
		RetryAttempts:   3,
		RetryInterval:   5 * time.Second,
		ConnectTimeout:  30 * time.Second,
		ScanCount:       100,
		DeleteBatchSize: 1000,
	}
}
