package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"killrvideo/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace     = "killrvideo"
	submissionPrefix = "submission"
)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// RedisConfig holds connection settings for the Redis ledger
type RedisConfig struct {
	URL      string
	Address  string
	Password string
	DB       int
	PoolSize int
}

// RedisLedger keeps submission claims in Redis with SET NX and a TTL
type RedisLedger struct {
	store cmdable
	raw   *redis.Client
}

// NewRedisLedger connects to Redis and verifies connectivity
func NewRedisLedger(ctx context.Context, cfg RedisConfig) (*RedisLedger, error) {
	raw, err := DialRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RedisLedger{store: raw, raw: raw}, nil
}

// DialRedis opens a client from cfg and pings it
func DialRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return raw, nil
}

func optionsFromConfig(cfg RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	return opts, nil
}

// Claim sets the submission key only if it does not exist yet
func (l *RedisLedger) Claim(ctx context.Context, submissionID string, ttl time.Duration) (bool, error) {
	if l.store == nil {
		return false, errors.New("redis client not initialized")
	}
	ok, err := l.store.SetNX(ctx, SubmissionKey(submissionID), utils.FormatRFC3339(time.Now()), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim submission: %w", err)
	}
	return ok, nil
}

// Release deletes the submission key
func (l *RedisLedger) Release(ctx context.Context, submissionID string) error {
	if l.store == nil {
		return errors.New("redis client not initialized")
	}
	return l.store.Del(ctx, SubmissionKey(submissionID)).Err()
}

// Ping verifies the connection
func (l *RedisLedger) Ping(ctx context.Context) error {
	if l.store == nil {
		return errors.New("redis client not initialized")
	}
	return l.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available
func (l *RedisLedger) Close() error {
	if l.raw == nil {
		return nil
	}
	return l.raw.Close()
}

// SubmissionKey returns the namespaced key for a submission id
func SubmissionKey(id string) string {
	return strings.Join([]string{keyNamespace, submissionPrefix, strings.TrimSpace(id)}, ":")
}
