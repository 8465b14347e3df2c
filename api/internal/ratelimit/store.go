package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store keeps hit counters. Incr must be atomic per key: it adds one hit and returns
// the new count, starting the key's expiry on the first hit.
type Store interface {
	Name() string
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

type memEntry struct {
	count   int64
	expires time.Time
}

// MemoryStore is a process-local Store. Counters are not shared between processes.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]memEntry
	lastSweep time.Time
	now       func() time.Time
}

const memorySweepEvery = time.Minute

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry), now: time.Now}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= memorySweepEvery {
		m.sweepLocked(now)
	}
	e, ok := m.entries[key]
	if !ok || !now.Before(e.expires) {
		e = memEntry{expires: now.Add(ttl)}
	}
	e.count++
	m.entries[key] = e
	return e.count, nil
}

func (m *MemoryStore) sweepLocked(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.lastSweep = now
}

// Len reports the number of live and not yet swept counters.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
