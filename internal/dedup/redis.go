package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "claims:event:"

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore shares the seen-set across instances through Redis.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) Seen(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("look up event %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *redisStore) Remember(ctx context.Context, id string) error {
	if err := s.client.Set(ctx, redisKeyPrefix+id, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("remember event %s: %w", id, err)
	}
	return nil
}
