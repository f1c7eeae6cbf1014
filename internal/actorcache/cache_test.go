package actorcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	cache, err := New("redis://"+s.Addr(), ttl)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return cache, s
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("not-a-url", DefaultTTL); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestSetAndGet(t *testing.T) {
	cache, s := setupTestCache(t, DefaultTTL)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()

	if _, hit := cache.Get(ctx, "dana.reyes"); hit {
		t.Fatal("expected miss for unknown actor")
	}

	cache.Set(ctx, "dana.reyes", "Dana Reyes")

	display, hit := cache.Get(ctx, "dana.reyes")
	if !hit {
		t.Fatal("expected hit after set")
	}
	if display != "Dana Reyes" {
		t.Errorf("display = %q", display)
	}
}

func TestEntriesExpire(t *testing.T) {
	cache, s := setupTestCache(t, 60*time.Second)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	cache.Set(ctx, "dana.reyes", "Dana Reyes")

	s.FastForward(61 * time.Second)

	if _, hit := cache.Get(ctx, "dana.reyes"); hit {
		t.Fatal("expected miss after ttl expired")
	}
}

func TestGetSurvivesRedisOutage(t *testing.T) {
	cache, s := setupTestCache(t, DefaultTTL)
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "dana.reyes", "Dana Reyes")
	s.Close()

	if _, hit := cache.Get(ctx, "dana.reyes"); hit {
		t.Fatal("expected miss when redis is down")
	}
	// Set must not panic either.
	cache.Set(ctx, "kim.otto", "Kim Otto")
}

func TestPing(t *testing.T) {
	cache, s := setupTestCache(t, DefaultTTL)
	defer cache.Close()
	defer s.Close()

	if err := cache.Ping(context.Background()); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}
