package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounters struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounters) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounters) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCounters) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.counts, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisWindowLimiter(t *testing.T) {
	ctx := context.Background()
	store := newFakeCounters()
	l := newRedisWindowLimiter(store, 2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "ip:1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "ip:1")
	require.NoError(t, err)
	assert.False(t, ok)

	key := l.windowKey("ip:1")
	assert.Equal(t, time.Minute, store.expires[key], "first hit sets the window expiry")

	require.NoError(t, l.Reset(ctx, "ip:1"))
	ok, _ = l.Allow(ctx, "ip:1")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	assert.NotEqual(t, key, l.windowKey("ip:1"))
}

func TestRedisWindowLimiterStoreError(t *testing.T) {
	store := newFakeCounters()
	store.err = errors.New("connection refused")
	_, err := newRedisWindowLimiter(store, 1, time.Minute).Allow(context.Background(), "ip:1")
	assert.ErrorContains(t, err, "connection refused")
}
