package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		seen, err := store.Seen(ctx, "evt-1")
		if err != nil {
			t.Fatalf("Seen returned error: %v", err)
		}
		if seen {
			t.Fatalf("an id that was never remembered must not be reported as seen")
		}
	}

	if err := store.Remember(ctx, "evt-1"); err != nil {
		t.Fatalf("Remember returned error: %v", err)
	}
	seen, err := store.Seen(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Seen returned error: %v", err)
	}
	if !seen {
		t.Fatalf("a remembered id must be reported as seen")
	}

	if seen, _ := store.Seen(ctx, "evt-2"); seen {
		t.Fatalf("distinct ids must not collide")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Minute))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseStore(t, NewRedisStore(client, time.Minute))

	if ttl := mr.TTL(redisKeyPrefix + "evt-1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected key to carry the ttl, got %s", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if seen, _ := NewRedisStore(client, time.Minute).Seen(context.Background(), "evt-1"); seen {
		t.Fatalf("expired ids must be accepted again")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	store := NewRedisStore(client, time.Minute)
	if _, err := store.Seen(context.Background(), "evt-1"); err == nil {
		t.Fatalf("expected an error when redis is down")
	}
	if err := store.Remember(context.Background(), "evt-1"); err == nil {
		t.Fatalf("expected an error when redis is down")
	}
}
