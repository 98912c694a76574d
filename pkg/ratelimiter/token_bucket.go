package ratelimiter

import (
	"sync"
	"time"
)

// TokenBucket 是一个令牌桶限流器。桶以固定速率补充令牌，
// 允许最多 capacity 次的突发请求。
type TokenBucket struct {
	mu         sync.Mutex
	rate       float64 // 每秒补充的令牌数
	capacity   float64
	tokens     float64
	lastRefill time.Time
}

func NewTokenBucket(rate, capacity float64) *TokenBucket {
	return &TokenBucket{
		rate:       rate,
		capacity:   capacity,
		tokens:     capacity, // 初始为满桶
		lastRefill: time.Now(),
	}
}

// Allow 报告当前是否允许一次请求，允许时消耗一个令牌。
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(tb.lastRefill); elapsed > 0 {
		tb.tokens += elapsed.Seconds() * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// KeyedLimiter 按 key（通常是用户或客户端 IP）维护独立的令牌桶。
// 长时间未使用的桶会被定期清理。
type KeyedLimiter struct {
	mu       sync.Mutex
	rate     float64
	capacity float64
	buckets  map[string]*keyedBucket
}

type keyedBucket struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

const bucketIdleTTL = 10 * time.Minute

func NewKeyedLimiter(rate, capacity float64) *KeyedLimiter {
	l := &KeyedLimiter{
		rate:     rate,
		capacity: capacity,
		buckets:  make(map[string]*keyedBucket),
	}
	go l.janitor()
	return l
}

// Allow 报告指定 key 的请求是否允许通过。
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	entry, ok := l.buckets[key]
	if !ok {
		entry = &keyedBucket{bucket: NewTokenBucket(l.rate, l.capacity)}
		l.buckets[key] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	return entry.bucket.Allow()
}

func (l *KeyedLimiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-bucketIdleTTL)
		l.mu.Lock()
		for key, entry := range l.buckets {
			if entry.lastSeen.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
