package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fathy2028/marketco/internal/config"
)

// takeScript performs refill and deduct as one atomic step. Splitting the
// two across round-trips would let concurrent replicas overdraw the burst.
const takeScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local t = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(t[1]) or capacity
local ts = tonumber(t[2]) or now

local delta = math.max(0, now - ts)
tokens = math.min(capacity, tokens + delta * rate / 1000.0)

if tokens >= cost then
  tokens = tokens - cost
  redis.call('HMSET', key, 'tokens', tokens, 'ts', now)
  redis.call('PEXPIRE', key, 60000)
  return {1, 0}
end

redis.call('HMSET', key, 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', key, 60000)
return {0, math.ceil((cost - tokens) / rate)}
`

// RedisLimiter coordinates the bucket across gateway replicas through a
// shared Redis instance.
type RedisLimiter struct {
	cfg    config.RateLimit
	rdb    *redis.Client
	script *redis.Script
}

func NewRedisLimiter(cfg config.RateLimit, rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{cfg: cfg, rdb: rdb, script: redis.NewScript(takeScript)}
}

func (l *RedisLimiter) Take(ctx context.Context, key string) (Decision, error) {
	now := time.Now().UnixMilli()
	res, err := l.script.Run(ctx, l.rdb, []string{"rl:" + key},
		now, l.cfg.Rate, l.cfg.Capacity, l.cfg.Cost).Result()
	if err != nil {
		return Decision{}, err
	}
	arr := res.([]interface{})
	if arr[0].(int64) == 1 {
		return Decision{Allowed: true}, nil
	}
	retry := time.Duration(arr[1].(int64)) * time.Second
	if retry < time.Second {
		retry = time.Second
	}
	return Decision{Allowed: false, RetryAfter: retry}, nil
}
