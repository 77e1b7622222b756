package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter bounds repeated login attempts per key (one key per
// connection in Authenticator) using a fixed-window counter, grounded on the rate-limiter/gateway
// example repo's Redis-backed limiting approach (same top-level
// example corpus as the teacher).
type RedisLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

// NewRedisLimiter constructs a RedisLimiter allowing max attempts per
// window, against the given Redis address.
func NewRedisLimiter(addr string, max int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		max:    max,
		window: window,
	}
}

// Allow increments key's counter, setting its expiry on first use, and
// reports whether the caller is still under the limit.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= l.max, nil
}

// Close releases the underlying Redis client.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
