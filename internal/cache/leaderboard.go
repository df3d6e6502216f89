package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jason-s-yu/promptbattle/internal/models"
	"github.com/redis/go-redis/v9"
)

const leaderboardKey = keyPrefix + "leaderboard"

// Leaderboard caches top-profile listings in a Redis hash keyed by limit.
// The whole hash expires after ttl and is dropped whenever counters change.
type Leaderboard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLeaderboard(rdb *redis.Client, ttl time.Duration) *Leaderboard {
	return &Leaderboard{rdb: rdb, ttl: ttl}
}

// Get returns the cached listing for limit, reporting false on a miss.
func (l *Leaderboard) Get(ctx context.Context, limit int) ([]models.Profile, bool, error) {
	data, err := l.rdb.HGet(ctx, leaderboardKey, strconv.Itoa(limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read leaderboard cache: %w", err)
	}
	var profiles []models.Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, false, fmt.Errorf("decode leaderboard cache: %w", err)
	}
	return profiles, true, nil
}

// Set stores the listing for limit and refreshes the expiry.
func (l *Leaderboard) Set(ctx context.Context, limit int, profiles []models.Profile) error {
	data, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("encode leaderboard cache: %w", err)
	}
	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, leaderboardKey, strconv.Itoa(limit), data)
		pipe.Expire(ctx, leaderboardKey, l.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write leaderboard cache: %w", err)
	}
	return nil
}

// Invalidate drops every cached listing.
func (l *Leaderboard) Invalidate(ctx context.Context) error {
	return l.rdb.Del(ctx, leaderboardKey).Err()
}
