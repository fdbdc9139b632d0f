package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// presenceKey is a single ZSet of visitor ids scored by last-seen time.
// There is one admin console, so one set covers the whole site.
const presenceKey = "presence:visitors"

// onlineWindow is how far back a poll still counts as "online".
const onlineWindow = 45 * time.Second

type RedisPresenceStore struct {
	rdb *redis.Client
}

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{
		rdb: rdb,
	}
}

// Touch adds/updates a visitor in the ZSet with the current timestamp.
func (p *RedisPresenceStore) Touch(
	ctx context.Context,
	userID string,
	ttl time.Duration,
) error {
	now := time.Now().Unix()
	err := p.rdb.ZAdd(ctx, presenceKey, redis.Z{
		Score:  float64(now),
		Member: userID,
	}).Err()
	if err != nil {
		return err
	}
	// Expire the whole ZSet so a quiet site doesn't leak memory.
	return p.rdb.Expire(ctx, presenceKey, ttl*2).Err()
}

// Online returns visitors who have polled within the online window.
func (p *RedisPresenceStore) Online(ctx context.Context) ([]string, error) {
	threshold := time.Now().Add(-onlineWindow).Unix()
	// Remove stale members first (self-cleaning)
	p.rdb.ZRemRangeByScore(ctx, presenceKey, "-inf", strconv.FormatInt(threshold, 10))
	return p.rdb.ZRange(ctx, presenceKey, 0, -1).Result()
}
