package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter.
type RateLimiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
}

func NewRateLimiter(rdb *redis.Client, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, max: max, window: window}
}

// Allow counts one hit for key and reports whether it is within the window's budget.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	fullKey := keyPrefix + "ratelimit:" + key

	count, err := l.rdb.Incr(ctx, fullKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	// first hit opens the window
	if count == 1 {
		if err := l.rdb.Expire(ctx, fullKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("rate limit %s: %w", key, err)
		}
	}
	return count <= int64(l.max), nil
}
