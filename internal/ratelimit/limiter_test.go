package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/control-center/internal/ratelimit"
)

func TestCheckRateLimit_Window(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := ratelimit.NewLimiter(rdb, "salt")
	cfg := ratelimit.LimitConfig{Rate: 2, Window: 10 * time.Second}

	for i := 0; i < 2; i++ {
		d, err := l.CheckRateLimit(context.Background(), ratelimit.ScopeIP, "rl:test", cfg)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := l.CheckRateLimit(context.Background(), ratelimit.ScopeIP, "rl:test", cfg)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Equal(t, ratelimit.ScopeIP, d.Scope)
	assert.Greater(t, d.RetryAfter, 0)

	mr.FastForward(11 * time.Second)
	d, err = l.CheckRateLimit(context.Background(), ratelimit.ScopeIP, "rl:test", cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "window expired")
}

func TestCheckRateLimit_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	l := ratelimit.NewLimiter(redis.NewClient(&redis.Options{Addr: addr}), "")
	_, err := l.CheckRateLimit(context.Background(), ratelimit.ScopeIP, "k", ratelimit.LimitConfig{Rate: 1, Window: time.Second})
	assert.ErrorIs(t, err, ratelimit.ErrRedisUnavailable)
}

func TestHashIP_Stable(t *testing.T) {
	l := ratelimit.NewLimiter(nil, "pepper")
	assert.Equal(t, l.HashIP("10.0.0.1"), l.HashIP("10.0.0.1"))
	assert.NotEqual(t, l.HashIP("10.0.0.1"), l.HashIP("10.0.0.2"))
}
