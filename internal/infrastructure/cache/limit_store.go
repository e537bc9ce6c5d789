package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// LimitResult is the outcome of one rate limit check
type LimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// LimitStore counts requests per key
type LimitStore interface {
	Allow(ctx context.Context, key string) (LimitResult, error)
}

// MemoryLimitStore keeps one token bucket per key in process memory
type MemoryLimitStore struct {
	limiters    map[string]*limiterEntry
	mu          sync.RWMutex
	rate        rate.Limit
	burst       int
	cleanupTick time.Duration
	entryTTL    time.Duration
	stop        chan struct{}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimitStore allows requests per window with a burst of the same size
func NewMemoryLimitStore(requests int, window time.Duration) *MemoryLimitStore {
	s := &MemoryLimitStore{
		limiters:    make(map[string]*limiterEntry),
		rate:        rate.Limit(float64(requests) / window.Seconds()),
		burst:       requests,
		cleanupTick: 5 * time.Minute,
		entryTTL:    10 * time.Minute,
		stop:        make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *MemoryLimitStore) Allow(_ context.Context, key string) (LimitResult, error) {
	limiter := s.getLimiter(key)
	if !limiter.Allow() {
		return LimitResult{Limit: s.burst, RetryAfter: time.Second}, nil
	}
	return LimitResult{Allowed: true, Limit: s.burst, Remaining: int(limiter.Tokens())}, nil
}

func (s *MemoryLimitStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.limiters[key]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}
	limiter := rate.NewLimiter(s.rate, s.burst)
	s.limiters[key] = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (s *MemoryLimitStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryLimitStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.entryTTL)
	for key, entry := range s.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(s.limiters, key)
		}
	}
}

// Close stops the cleanup loop
func (s *MemoryLimitStore) Close() {
	close(s.stop)
}

// RedisLimitStore is a fixed-window counter shared by every instance using the same Redis
type RedisLimitStore struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimitStore allows limit requests per window for each key
func NewRedisLimitStore(client *redis.Client, limit int, window time.Duration) *RedisLimitStore {
	return &RedisLimitStore{client: client, limit: limit, window: window, prefix: "ratelimit"}
}

func (s *RedisLimitStore) Allow(ctx context.Context, key string) (LimitResult, error) {
	bucket := time.Now().UnixNano() / int64(s.window)
	redisKey := fmt.Sprintf("%s:%s:%d", s.prefix, key, bucket)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, s.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return LimitResult{}, err
	}

	count := int(incr.Val())
	if count > s.limit {
		windowEnd := time.Unix(0, (bucket+1)*int64(s.window))
		return LimitResult{Limit: s.limit, RetryAfter: time.Until(windowEnd)}, nil
	}
	return LimitResult{Allowed: true, Limit: s.limit, Remaining: s.limit - count}, nil
}
