// Package dedup provides cross-instance idempotency claims for webhook
// deliveries. Providers redeliver at least once; the first instance to
// claim a provider message id processes it, the rest drop it. The
// per-conversation dedup in the store remains authoritative.
package dedup

import (
	"context"
	"sync"
	"time"
)

// Deduper claims delivery keys. Claim returns true when the key was not
// seen before within the TTL window.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// Memory is a single-instance Deduper backed by a map with TTL expiry.
type Memory struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
}

// NewMemory creates an in-memory deduper with the given claim TTL.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:  ttl,
		seen: make(map[string]time.Time),
	}
}

// Claim records the key, returning true on first sight within the TTL.
func (m *Memory) Claim(ctx context.Context, key string) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, ok := m.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}
	m.seen[key] = now.Add(m.ttl)

	// Opportunistic sweep keeps the map bounded without a janitor goroutine.
	if len(m.seen) > 10000 {
		for k, expiry := range m.seen {
			if now.After(expiry) {
				delete(m.seen, k)
			}
		}
	}
	return true, nil
}
