package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, inner Lookup) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, time.Minute, inner, nil), mr
}

func TestRedisCacheServesSecondReadFromRedis(t *testing.T) {
	ctx := context.Background()
	inner := NewMockLookup(MenuItem{ID: "margherita", Name: "Margherita", Price: 10, Currency: "USD", Available: true})
	cache, mr := newTestCache(t, inner)

	first, err := cache.Items(ctx, "t-1", []string{"margherita", "ghost"})
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if first["margherita"].Price != 10 {
		t.Fatalf("first read = %+v", first)
	}
	if !mr.Exists("catalog:t-1:margherita") {
		t.Fatal("item was not cached")
	}
	if mr.TTL("catalog:t-1:margherita") != time.Minute {
		t.Errorf("ttl = %v, want 1m", mr.TTL("catalog:t-1:margherita"))
	}

	second, err := cache.Items(ctx, "t-1", []string{"margherita"})
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if second["margherita"].Name != "Margherita" {
		t.Errorf("second read = %+v", second)
	}
	if n := len(inner.Calls()); n != 1 {
		t.Errorf("inner lookup calls = %d, want 1", n)
	}
}

func TestRedisCacheKeysByTenant(t *testing.T) {
	ctx := context.Background()
	inner := NewMockLookup(MenuItem{ID: "m", Price: 1})
	cache, _ := newTestCache(t, inner)

	_, _ = cache.Items(ctx, "t-1", []string{"m"})
	_, _ = cache.Items(ctx, "t-2", []string{"m"})

	if n := len(inner.Calls()); n != 2 {
		t.Errorf("inner lookup calls = %d, want 2", n)
	}
}

func TestRedisCacheFallsBackWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	inner := NewMockLookup(MenuItem{ID: "m", Price: 3})
	cache, mr := newTestCache(t, inner)
	mr.Close()

	got, err := cache.Items(ctx, "t-1", []string{"m"})
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if got["m"].Price != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestRedisCachePropagatesInnerError(t *testing.T) {
	inner := NewMockLookup()
	inner.ItemsFunc = func(ctx context.Context, tenantID string, ids []string) (map[string]MenuItem, error) {
		return nil, errors.New("menu service down")
	}
	cache, _ := newTestCache(t, inner)

	if _, err := cache.Items(context.Background(), "t-1", []string{"m"}); err == nil {
		t.Error("expected error")
	}
}

func TestRedisCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := NewMockLookup(MenuItem{ID: "m", Price: 3})
	cache, mr := newTestCache(t, inner)

	_, _ = cache.Items(ctx, "t-1", []string{"m"})
	if err := cache.Invalidate(ctx, "t-1", "m"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if mr.Exists("catalog:t-1:m") {
		t.Error("entry still cached")
	}
}
