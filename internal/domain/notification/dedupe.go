package notification

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper claims a key once. Claim returns false when the key was already
// claimed.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// RedisDeduper claims keys with SETNX and a TTL
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, key, 1, d.ttl).Result()
}
