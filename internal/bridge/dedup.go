package bridge

import (
	"sync"
	"time"
)

// dedup suppresses redelivered lifecycle events within a time-to-live
// window. The engine's push channel is at-least-once, so the same fact can
// arrive more than once; reconciliation is idempotent regardless, but
// suppressing duplicates here avoids repeated notifications and balance
// refreshes. Safe for concurrent use.
type dedup struct {
	seen map[string]time.Time // dedup key -> last seen
	ttl  time.Duration
	mu   sync.Mutex
}

func newDedup(ttl time.Duration) *dedup {
	return &dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// isDuplicate returns true if key has been seen within the TTL window. A
// fresh (or expired) key is recorded and false is returned.
func (d *dedup) isDuplicate(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.ttl {
		return true
	}
	d.seen[key] = now
	return false
}

// cleanup removes expired entries to bound memory growth. Called
// periodically from the bridge loop.
func (d *dedup) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for key, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, key)
		}
	}
}
