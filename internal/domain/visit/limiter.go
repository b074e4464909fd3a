package visit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	limiterWindow  = time.Minute
	localMaxKeys   = 10000
	limiterKeySpan = "visit:rl:"
)

// Limiter caps visit submissions per customer
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// NewLimiter returns a Redis-backed limiter when client is set, otherwise
// an in-process one.
func NewLimiter(client *redis.Client, perMinute int) Limiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if client != nil {
		return &RedisLimiter{client: client, limit: int64(perMinute), window: limiterWindow}
	}
	return NewLocalLimiter(perMinute)
}

func limiterKey(tenantID uuid.UUID, phone string) string {
	return limiterKeySpan + tenantID.String() + ":" + phone
}

// RedisLimiter is a fixed-window counter shared by all API instances
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= l.limit, nil
}

// LocalLimiter keeps a token bucket per key in memory
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

func NewLocalLimiter(perMinute int) *LocalLimiter {
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(limiterWindow / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= localMaxKeys {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[key] = lim
	}
	return lim.Allow(), nil
}
