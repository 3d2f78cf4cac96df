package authcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "authz:"

// RedisStore persists cached authorization facts in Redis so all process
// replicas share one cache. Redis failures degrade to cache misses.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, principal string) (bool, bool) {
	val, err := s.client.Get(ctx, keyPrefix+principal).Result()
	if err != nil {
		// redis.Nil and transport errors alike are cache misses.
		return false, false
	}
	return val == "1", true
}

func (s *RedisStore) Set(ctx context.Context, principal string, ttl time.Duration) {
	_ = s.client.Set(ctx, keyPrefix+principal, "1", ttl).Err()
}

func (s *RedisStore) Invalidate(ctx context.Context, principal string) {
	_ = s.client.Del(ctx, keyPrefix+principal).Err()
}
