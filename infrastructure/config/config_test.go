package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("DEDUP_BACKEND", "")
	t.Setenv("RATE_LIMIT_BACKEND", "")
	t.Setenv("ENVIRONMENT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, DedupMemory, cfg.DedupBackend)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 25, cfg.MaxBatchStatements)
	assert.Equal(t, RateLimitMemory, cfg.RateLimitBackend)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.True(t, cfg.IsDevelopment())
}

func TestCloudWatchFollowsLambda(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ENABLE_CLOUDWATCH", "")
	t.Setenv("CLOUDWATCH_NAMESPACE", "")

	t.Setenv("IS_LAMBDA", "true")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.EnableCloudWatch)
	assert.Equal(t, "KillrVideo/staging", cfg.CloudWatchNamespace)
	assert.Equal(t, time.Minute, cfg.CloudWatchInterval)

	t.Setenv("IS_LAMBDA", "false")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.EnableCloudWatch)

	t.Setenv("ENABLE_CLOUDWATCH", "true")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.EnableCloudWatch)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Cassandra")
	t.Setenv("CASSANDRA_HOSTS", "10.0.0.1, 10.0.0.2,")
	t.Setenv("WRITE_TIMEOUT", "750ms")
	t.Setenv("DEDUP_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("DEDUP_TTL", "not-a-duration")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreCassandra, cfg.StoreBackend)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.CassandraHosts)
	assert.Equal(t, 750*time.Millisecond, cfg.WriteTimeout)
	assert.Zero(t, cfg.DedupTTL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment:        "development",
			StoreBackend:       StoreMemory,
			DedupBackend:       DedupMemory,
			RateLimitBackend:   RateLimitMemory,
			RateLimit:          10,
			RateWindow:         time.Minute,
			WriteTimeout:       time.Second,
			MaxBatchStatements: 25,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown store", func(c *Config) { c.StoreBackend = "postgres" }, "STORE_BACKEND"},
		{"unknown dedup", func(c *Config) { c.DedupBackend = "etcd" }, "DEDUP_BACKEND"},
		{"dynamodb needs a table", func(c *Config) { c.StoreBackend = StoreDynamoDB }, "DYNAMODB_TABLE"},
		{"redis needs an address", func(c *Config) { c.DedupBackend = DedupRedis }, "REDIS_ADDR"},
		{"unknown rate limiter", func(c *Config) { c.RateLimitBackend = "memcached" }, "RATE_LIMIT_BACKEND"},
		{"redis rate limiter needs an address", func(c *Config) { c.RateLimitBackend = RateLimitRedis }, "redis rate limiter"},
		{"zero rate", func(c *Config) { c.RateLimit = 0 }, "RATE_LIMIT"},
		{"cloudwatch needs a namespace", func(c *Config) { c.EnableCloudWatch = true }, "CLOUDWATCH_NAMESPACE"},
		{"no limiter ignores rate", func(c *Config) {
			c.RateLimitBackend = RateLimitNone
			c.RateLimit = 0
		}, ""},
		{"zero timeout", func(c *Config) { c.WriteTimeout = 0 }, "WRITE_TIMEOUT"},
		{"production needs a secret", func(c *Config) {
			c.Environment = "production"
			c.StoreBackend = StoreCassandra
			c.CassandraHosts = []string{"db"}
		}, "JWT_SECRET"},
		{"production rejects memory", func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = "s"
		}, "memory store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
