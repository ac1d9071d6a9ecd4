package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	return srv, redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestFixedWindowLimiter(t *testing.T) {
	_, client := testClient(t)
	limiter, err := New(client, "test:ratelimit", 2, time.Second)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if !limiter.Allow("ip-1") {
		t.Fatalf("first request should pass")
	}
	if !limiter.Allow("ip-1") {
		t.Fatalf("second request should pass")
	}
	if limiter.Allow("ip-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow("ip-2") {
		t.Fatalf("other keys have their own budget")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	srv, client := testClient(t)
	limiter, err := New(client, "test:ratelimit", 1, time.Second)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	srv.Close()
	if limiter.Allow("ip-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresClient(t *testing.T) {
	if _, err := New(nil, "test", 1, time.Second); err == nil {
		t.Fatalf("expected constructor error for nil client")
	}
}

func TestFixedWindowLimiterRequiresPositiveLimit(t *testing.T) {
	_, client := testClient(t)
	if _, err := New(client, "test", 0, time.Second); err == nil {
		t.Fatalf("expected constructor error for zero limit")
	}
}
