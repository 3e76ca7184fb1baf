package dedup

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

type memoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore keeps the seen-set in process; redeliveries to other instances are not caught.
func NewMemoryStore(ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &memoryStore{cache: cache.New(ttl, ttl/2)}
}

func (s *memoryStore) Seen(_ context.Context, id string) (bool, error) {
	_, found := s.cache.Get(id)
	return found, nil
}

func (s *memoryStore) Remember(_ context.Context, id string) error {
	s.cache.SetDefault(id, struct{}{})
	return nil
}
