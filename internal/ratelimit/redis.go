package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// admitScript runs the sliding-window check atomically on one sorted set.
// KEYS[1] ledger key; ARGV: now (ms), window (ms), limit, member.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisSlidingWindow shares the sliding-window ledger between replicas through Redis.
type RedisSlidingWindow struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisSlidingWindow admits at most limit requests per client per window
// across every process using rdb. A limit of zero or less disables limiting.
func NewRedisSlidingWindow(rdb *redis.Client, limit int, window time.Duration, now func() time.Time) *RedisSlidingWindow {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &RedisSlidingWindow{rdb: rdb, limit: limit, window: window, now: now}
}

// Admit behaves like SlidingWindow.Admit; a Redis failure is returned as an error.
func (r *RedisSlidingWindow) Admit(ctx context.Context, clientID string) (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}
	res, err := admitScript.Run(ctx, r.rdb,
		[]string{redisKeyPrefix + clientID},
		r.now().UnixMilli(),
		r.window.Milliseconds(),
		r.limit,
		uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return res == 1, nil
}
