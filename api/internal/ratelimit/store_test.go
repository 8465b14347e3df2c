package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryStoreIncrAndExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		if n, _ := m.Incr(ctx, "k", time.Minute); n != want {
			t.Fatalf("Incr() = %d, want %d", n, want)
		}
	}
	now = now.Add(time.Minute)
	if n, _ := m.Incr(ctx, "k", time.Minute); n != 1 {
		t.Fatalf("Incr() after expiry = %d, want 1", n)
	}
}

func TestMemoryStoreSweeps(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = m.Incr(ctx, "a", time.Second)
	_, _ = m.Incr(ctx, "b", time.Second)
	now = now.Add(2 * memorySweepEvery)
	_, _ = m.Incr(ctx, "c", time.Hour)
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after sweep", m.Len())
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore("redis://"+mr.Addr(), time.Second)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	for want := int64(1); want <= 3; want++ {
		n, err := s.Incr(ctx, "k", 30*time.Second)
		if err != nil || n != want {
			t.Fatalf("Incr() = %d, %v, want %d", n, err, want)
		}
	}
	if ttl := mr.TTL("k"); ttl <= 0 || ttl > 30*time.Second {
		t.Fatalf("TTL = %v", ttl)
	}

	mr.FastForward(31 * time.Second)
	if n, err := s.Incr(ctx, "k", 30*time.Second); err != nil || n != 1 {
		t.Fatalf("Incr() after expiry = %d, %v", n, err)
	}
}

func TestRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("http://nope", time.Second); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestOpenPrefersRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	s := Open(context.Background(), Options{RedisURL: "redis://" + mr.Addr()}, nil)
	defer s.Close()
	if s.Name() != "redis" {
		t.Fatalf("Open() backend = %s, want redis", s.Name())
	}
}

func TestOpenFallsBackToMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	start := time.Now()
	s := Open(context.Background(), Options{
		RedisURL:    "redis://" + addr,
		DatabaseURL: "postgres://user:pass@" + addr + "/db?sslmode=disable",
		Timeout:     200 * time.Millisecond,
	}, nil)
	if s.Name() != "memory" {
		t.Fatalf("Open() backend = %s, want memory", s.Name())
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Open() took %v", elapsed)
	}
	if n, err := s.Incr(context.Background(), "k", time.Minute); err != nil || n != 1 {
		t.Fatalf("Incr() = %d, %v", n, err)
	}
}

func TestOpenWithoutURLs(t *testing.T) {
	if s := Open(context.Background(), Options{}, nil); s.Name() != "memory" {
		t.Fatalf("Open() backend = %s", s.Name())
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn, 5*time.Second)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer s.Close()

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	for want := int64(1); want <= 2; want++ {
		n, err := s.Incr(ctx, key, time.Minute)
		if err != nil || n != want {
			t.Fatalf("Incr() = %d, %v, want %d", n, err, want)
		}
	}
	if _, err := s.DB.ExecContext(ctx, `update rate_limit_counters set expires_at = now() - interval '1 second' where key = $1`, key); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n, err := s.Incr(ctx, key, time.Minute); err != nil || n != 1 {
		t.Fatalf("Incr() after expiry = %d, %v", n, err)
	}
	if _, err := s.Sweep(ctx); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
}
