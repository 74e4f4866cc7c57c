package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisSlidingWindowScript maintains one sorted set per client keyed by
// request time. Prune, count, and conditional append run as a single
// atomic script so concurrent requests from the same client cannot slip
// past the cap.
// KEYS[1] = window key (e.g. "intake:window:10.0.0.1")
// ARGV[1] = window length in microseconds
// ARGV[2] = cap
// ARGV[3] = current unix time in microseconds
// ARGV[4] = unique member for this request
//
// The member must be unique per request: scoring the timestamp under
// itself would collapse same-microsecond requests into one member and let
// a burst past the cap.
var redisSlidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local cap = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)

local count = redis.call("ZCARD", key)
if count >= cap then
    return 0
end

redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, math.ceil(window / 1000))
return 1
`)

// RedisWindow implements WindowStore on Redis so multiple instances share
// one sliding window per client.
type RedisWindow struct {
	client *redis.Client
}

// NewRedisWindow creates a store backed by Redis.
func NewRedisWindow(addr, password string, db int) *RedisWindow {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisWindow{client: rdb}
}

// NewRedisWindowWithClient wraps an existing client, for tests.
func NewRedisWindowWithClient(client *redis.Client) *RedisWindow {
	return &RedisWindow{client: client}
}

// Allow executes the sliding-window script for the key.
func (s *RedisWindow) Allow(ctx context.Context, key string, policy Policy) (bool, error) {
	redisKey := fmt.Sprintf("intake:window:%s", key)
	now := time.Now().UnixMicro()

	res, err := redisSlidingWindowScript.Run(ctx, s.client, []string{redisKey},
		policy.Window.Microseconds(), policy.Max, now, windowMember(now)).Result()
	if err != nil {
		return false, fmt.Errorf("redis window error: %w", err)
	}

	allowed, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("invalid response from window script")
	}
	return allowed == 1, nil
}

// windowMember builds a sorted-set member unique to one request even when
// several requests share the same microsecond.
func windowMember(now int64) string {
	return fmt.Sprintf("%d:%s", now, uuid.NewString())
}
