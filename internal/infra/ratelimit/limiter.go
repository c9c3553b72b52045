package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter 每個 key 一個 token bucket
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Reconfigurable 設定檔重新載入時套用新的容量與速率
type Reconfigurable interface {
	Reconfigure(cfg LimiterConfig)
}

type LimiterConfig struct {
	Capacity int // bucket 容量，即允許的突發量
	RatePS   int // tokens/秒
}

func (c LimiterConfig) normalize() LimiterConfig {
	if c.Capacity <= 0 {
		c.Capacity = 10
	}
	if c.RatePS <= 0 {
		c.RatePS = 1
	}
	return c
}

// LocalLimiter 單一行程內的 token bucket，未設定 redis 時使用
type LocalLimiter struct {
	cfg     LimiterConfig
	mu      sync.Mutex
	buckets map[string]*localBucket
	idleTTL time.Duration
	now     func() time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalLimiter(cfg LimiterConfig) *LocalLimiter {
	return &LocalLimiter{
		cfg:     cfg.normalize(),
		buckets: map[string]*localBucket{},
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket, ok := l.buckets[key]
	if !ok {
		l.evictIdle(now)
		bucket = &localBucket{
			limiter: rate.NewLimiter(rate.Limit(l.cfg.RatePS), l.cfg.Capacity),
		}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1), nil
}

// evictIdle 閒置超過 idleTTL 的 bucket 已補滿，刪除不影響結果
func (l *LocalLimiter) evictIdle(now time.Time) {
	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

// Reconfigure 既有 bucket 保留目前 token 數，只更新速率與容量
func (l *LocalLimiter) Reconfigure(cfg LimiterConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cfg = cfg.normalize()
	now := l.now()
	for _, bucket := range l.buckets {
		bucket.limiter.SetLimitAt(now, rate.Limit(l.cfg.RatePS))
		bucket.limiter.SetBurstAt(now, l.cfg.Capacity)
	}
}
