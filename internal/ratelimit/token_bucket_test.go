package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestTokenBucket(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bucket := NewTokenBucket(client, 2, 0, time.Minute)

	d, err := bucket.Allow(ctx, "0xa11ce")
	if err != nil || !d.Allowed {
		t.Fatalf("expected first posting allowed got allowed=%v err=%v", d.Allowed, err)
	}
	if d.Remaining != 1 {
		t.Fatalf("expected 1 token remaining, got %v", d.Remaining)
	}
	d, _ = bucket.Allow(ctx, "0x0A11CE")
	if !d.Allowed {
		t.Fatalf("expected second posting allowed")
	}
	d, _ = bucket.Allow(ctx, "0x000a11ce")
	if d.Allowed {
		t.Fatalf("expected third posting to be rejected for the same actor in another address form")
	}

	d, _ = bucket.Allow(ctx, "0xb0b")
	if !d.Allowed {
		t.Fatalf("expected a separate bucket for another actor")
	}

	if ttl := mr.TTL(bucket.Key("0xa11ce")); ttl <= 0 {
		t.Fatalf("expected bucket key to carry a ttl, got %s", ttl)
	}
}

func TestTokenBucketRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	if _, err := NewTokenBucket(client, 1, 1, time.Minute).Allow(context.Background(), "0xa"); err == nil {
		t.Fatalf("expected error when redis is unavailable")
	}
}
