package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends
const (
	StoreMemory    = "memory"
	StoreDynamoDB  = "dynamodb"
	StoreCassandra = "cassandra"
)

// Dedup backends
const (
	DedupMemory   = "memory"
	DedupRedis    = "redis"
	DedupDynamoDB = "dynamodb"
	DedupNone     = "none"
)

// Rate limit backends
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
	RateLimitNone   = "none"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Storage
	StoreBackend       string
	WriteTimeout       time.Duration
	MaxBatchStatements int
	EnableBreaker      bool

	// AWS configuration
	AWSRegion        string
	DynamoDBTable    string
	DynamoDBEndpoint string
	EventBusName     string

	// Cassandra configuration
	CassandraHosts       []string
	CassandraKeyspace    string
	CassandraConsistency string
	CassandraTimeout     time.Duration

	// Counter submission deduplication
	DedupBackend string
	DedupTTL     time.Duration
	RedisAddr    string
	RedisURL     string

	// Request rate limiting
	RateLimitBackend string
	RateLimit        int
	RateWindow       time.Duration

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// CloudWatch publishing of the Prometheus metrics
	EnableCloudWatch    bool
	CloudWatchNamespace string
	CloudWatchInterval  time.Duration

	// Logging
	LogLevel string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Feature flags
	EnableEvents  bool
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		WriteTimeout:       getEnvDuration("WRITE_TIMEOUT", 5*time.Second),
		MaxBatchStatements: getEnvInt("MAX_BATCH_STATEMENTS", 25),
		EnableBreaker:      getEnvBool("ENABLE_BREAKER", true),

		AWSRegion:        getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable:    getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "killrvideo")),
		DynamoDBEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),
		EventBusName:     getEnv("EVENT_BUS_NAME", "killrvideo-events"),

		CassandraHosts:       getEnvList("CASSANDRA_HOSTS", []string{"127.0.0.1"}),
		CassandraKeyspace:    getEnv("CASSANDRA_KEYSPACE", ""),
		CassandraConsistency: getEnv("CASSANDRA_CONSISTENCY", "LOCAL_QUORUM"),
		CassandraTimeout:     getEnvDuration("CASSANDRA_TIMEOUT", 10*time.Second),

		DedupBackend: strings.ToLower(getEnv("DEDUP_BACKEND", DedupMemory)),
		DedupTTL:     getEnvDuration("DEDUP_TTL", 0),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisURL:     getEnv("REDIS_URL", ""),

		RateLimitBackend: strings.ToLower(getEnv("RATE_LIMIT_BACKEND", RateLimitMemory)),
		RateLimit:        getEnvInt("RATE_LIMIT", 100),
		RateWindow:       getEnvDuration("RATE_WINDOW", time.Minute),

		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "killrvideo"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableEvents:  getEnvBool("ENABLE_EVENTS", false),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}
	cfg.EnableCloudWatch = getEnvBool("ENABLE_CLOUDWATCH", cfg.IsLambda)
	cfg.CloudWatchNamespace = getEnv("CLOUDWATCH_NAMESPACE", "KillrVideo/"+cfg.Environment)
	cfg.CloudWatchInterval = getEnvDuration("CLOUDWATCH_INTERVAL", time.Minute)

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb store")
		}
	case StoreCassandra:
		if len(c.CassandraHosts) == 0 {
			return fmt.Errorf("CASSANDRA_HOSTS is required for the cassandra store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want memory, dynamodb or cassandra)", c.StoreBackend)
	}

	switch c.DedupBackend {
	case DedupMemory, DedupNone:
	case DedupRedis:
		if c.RedisAddr == "" && c.RedisURL == "" {
			return fmt.Errorf("REDIS_ADDR or REDIS_URL is required for the redis dedup backend")
		}
	case DedupDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb dedup backend")
		}
	default:
		return fmt.Errorf("unknown DEDUP_BACKEND %q (want memory, redis, dynamodb or none)", c.DedupBackend)
	}

	switch c.RateLimitBackend {
	case RateLimitMemory, RateLimitNone:
	case RateLimitRedis:
		if c.RedisAddr == "" && c.RedisURL == "" {
			return fmt.Errorf("REDIS_ADDR or REDIS_URL is required for the redis rate limiter")
		}
	default:
		return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q (want memory, redis or none)", c.RateLimitBackend)
	}
	if c.RateLimitBackend != RateLimitNone && (c.RateLimit <= 0 || c.RateWindow <= 0) {
		return fmt.Errorf("RATE_LIMIT and RATE_WINDOW must be positive")
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("WRITE_TIMEOUT must be positive")
	}
	if c.MaxBatchStatements <= 0 {
		return fmt.Errorf("MAX_BATCH_STATEMENTS must be positive")
	}
	if c.EnableCloudWatch && c.CloudWatchNamespace == "" {
		return fmt.Errorf("CLOUDWATCH_NAMESPACE is required when CloudWatch publishing is enabled")
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.StoreBackend == StoreMemory {
			return fmt.Errorf("the memory store is not allowed in production")
		}
		if c.EnableEvents && c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required when events are enabled")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration ("5s", "24h") with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList gets a comma separated list with a default value
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
