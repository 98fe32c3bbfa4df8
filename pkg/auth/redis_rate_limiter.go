package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "killrvideo:ratelimit:"

type counterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisWindowLimiter counts requests per key in fixed windows shared by
// every instance. A window's counter expires with the window.
type RedisWindowLimiter struct {
	store      counterStore
	limit      int64
	windowSize time.Duration
	now        func() time.Time
}

// NewRedisWindowLimiter creates a limiter on an existing client
func NewRedisWindowLimiter(client *redis.Client, limit int, windowSize time.Duration) *RedisWindowLimiter {
	return newRedisWindowLimiter(client, limit, windowSize)
}

func newRedisWindowLimiter(store counterStore, limit int, windowSize time.Duration) *RedisWindowLimiter {
	return &RedisWindowLimiter{
		store:      store,
		limit:      int64(limit),
		windowSize: windowSize,
		now:        time.Now,
	}
}

func (l *RedisWindowLimiter) windowKey(key string) string {
	window := l.now().UnixNano() / int64(l.windowSize)
	return rateLimitPrefix + key + ":" + strconv.FormatInt(window, 10)
}

// Allow increments the caller's counter for the current window
func (l *RedisWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.store == nil {
		return false, errors.New("redis client not initialized")
	}
	k := l.windowKey(key)
	n, err := l.store.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("incr rate counter: %w", err)
	}
	if n == 1 {
		if err := l.store.Expire(ctx, k, l.windowSize).Err(); err != nil {
			return false, fmt.Errorf("expire rate counter: %w", err)
		}
	}
	return n <= l.limit, nil
}

// Reset clears the caller's counter for the current window
func (l *RedisWindowLimiter) Reset(ctx context.Context, key string) error {
	if l.store == nil {
		return errors.New("redis client not initialized")
	}
	return l.store.Del(ctx, l.windowKey(key)).Err()
}
