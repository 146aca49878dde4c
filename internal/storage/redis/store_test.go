package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"authinfo/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	now := time.UnixMilli(1700000000000)
	store := NewStore(client, nil)
	store.now = func() time.Time { return now }

	t.Cleanup(func() { store.Close() })
	return store, mr, &now
}

func TestStoreBurstThenReject(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	limit := storage.Limit{Rate: 1, Burst: 3, Window: time.Second}

	for i := 0; i < 3; i++ {
		res, err := store.Allow(ctx, "10.0.0.1", limit)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if res.Remaining != 2-i {
			t.Errorf("request %d: remaining = %d, want %d", i+1, res.Remaining, 2-i)
		}
	}

	res, err := store.Allow(ctx, "10.0.0.1", limit)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("request beyond burst should be rejected")
	}
	if res.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", res.RetryAfter)
	}
}

func TestStoreRefill(t *testing.T) {
	ctx := context.Background()
	store, _, now := newTestStore(t)

	limit := storage.Limit{Rate: 10, Burst: 2, Window: time.Second}

	if _, err := store.AllowN(ctx, "client", 2, limit); err != nil {
		t.Fatal(err)
	}
	if res, _ := store.Allow(ctx, "client", limit); res.Allowed {
		t.Fatal("bucket should be empty")
	}

	*now = now.Add(100 * time.Millisecond)
	if res, _ := store.Allow(ctx, "client", limit); !res.Allowed {
		t.Error("expected a refilled token after 100ms")
	}
}

func TestStoreKeyPrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	store, mr, _ := newTestStore(t)

	limit := storage.Limit{Rate: 1, Burst: 1, Window: time.Second}
	if _, err := store.Allow(ctx, "client", limit); err != nil {
		t.Fatal(err)
	}

	key := storage.DefaultConfig().KeyPrefix + "client"
	if !mr.Exists(key) {
		t.Fatalf("expected key %s to exist, keys: %v", key, mr.Keys())
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Errorf("expected a TTL on %s, got %v", key, ttl)
	}
}

func TestStoreReset(t *testing.T) {
	ctx := context.Background()
	store, mr, _ := newTestStore(t)

	limit := storage.Limit{Rate: 1, Burst: 1, Window: time.Minute}
	store.Allow(ctx, "client", limit)

	if err := store.Reset(ctx, "client"); err != nil {
		t.Fatal(err)
	}
	if len(mr.Keys()) != 0 {
		t.Errorf("expected no keys after reset, got %v", mr.Keys())
	}
	if res, _ := store.Allow(ctx, "client", limit); !res.Allowed {
		t.Error("request after reset should be allowed")
	}
}

func TestStoreInvalidLimit(t *testing.T) {
	store, _, _ := newTestStore(t)

	if _, err := store.Allow(context.Background(), "client", storage.Limit{Burst: 1}); err == nil {
		t.Error("expected error for zero rate")
	}
}

func TestStorePing(t *testing.T) {
	store, mr, _ := newTestStore(t)

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() = %v", err)
	}

	mr.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Error("Ping() should fail when redis is down")
	}
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), Options{Address: mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	client.Close()

	addr := mr.Addr()
	mr.Close()
	if _, err := NewClient(context.Background(), Options{Address: addr, DialTimeout: 200 * time.Millisecond}); err == nil {
		t.Error("NewClient() should fail when redis is unreachable")
	}
}
