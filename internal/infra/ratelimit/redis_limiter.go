package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient 介面定義
type RedisClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

-- 取得或初始化 bucket 狀態
local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local currentTokens = tonumber(bucket[1])
local lastRefill = tonumber(bucket[2])

if currentTokens == nil then
	currentTokens = capacity
	lastRefill = now
end

-- 計算需要補充的 tokens
local elapsedSeconds = math.max(0, now - lastRefill) / 1000000000
currentTokens = math.min(capacity, currentTokens + elapsedSeconds * rate)

local allowed = 0
if currentTokens >= 1 then
	currentTokens = currentTokens - 1
	allowed = 1
end

redis.call('HSET', key, 'tokens', currentTokens, 'last_refill', now)
redis.call('EXPIRE', key, ttl)
return allowed
`

// RedisTokenBucket 多個實例共用同一個 bucket，整個判斷在 Lua 內原子完成
type RedisTokenBucket struct {
	client    RedisClient
	mu        sync.RWMutex
	cfg       LimiterConfig
	keyPrefix string
	now       func() time.Time
}

func NewRedisTokenBucket(client RedisClient, keyPrefix string, cfg LimiterConfig) *RedisTokenBucket {
	return &RedisTokenBucket{
		client:    client,
		cfg:       cfg.normalize(),
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// ttl bucket 從空到滿所需時間，之後 key 可以直接過期
func ttl(cfg LimiterConfig) int {
	return int(math.Ceil(float64(cfg.Capacity)/float64(cfg.RatePS))) + 1
}

func (r *RedisTokenBucket) Reconfigure(cfg LimiterConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg.normalize()
}

func (r *RedisTokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	r.mu.RLock()
	cfg := r.cfg
	r.mu.RUnlock()

	result, err := r.client.Eval(
		ctx,
		tokenBucketScript,
		[]string{r.keyPrefix + ":" + key},
		cfg.Capacity,
		cfg.RatePS,
		r.now().UnixNano(),
		ttl(cfg),
	).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}
