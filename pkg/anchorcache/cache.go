// Package anchorcache provides a single-slot, short-TTL read-through cache
// in front of the canonical tip lookup (ledger scan + selector), so that
// concurrent verify/timestamp requests arriving within the same TTL window
// don't each re-scan the ledger.
package anchorcache

import (
	"context"
	"sync"
	"time"
)

// Anchor is the cached shape of the canonical tip. It deliberately doesn't
// import pkg/anchormemo or pkg/selector so this package stays a generic
// TTL-cache wrapper; callers supply the refresh function.
type Anchor struct {
	BeatIndex     uint64
	Hash          string
	PrevHash      string
	UTC           int64
	Difficulty    uint32
	Epoch         uint32
	SolanaEntropy *string
}

// RefreshFunc looks up the current canonical tip. ok is false when there is
// no anchor at all yet (cold start), which is distinct from an error.
type RefreshFunc func(ctx context.Context) (anchor Anchor, ok bool, err error)

// Cache is a single-slot TTL cache. Concurrent Get calls during a refresh
// each perform their own refresh (no stampede protection is required by the
// spec); the slot is swapped atomically under the lock so every reader sees
// a consistent snapshot.
type Cache struct {
	ttl     time.Duration
	refresh RefreshFunc

	mu        sync.RWMutex
	anchor    Anchor
	haveEntry bool
	fetchedAt time.Time
}

// New builds a Cache with the given TTL, backed by refresh.
func New(ttl time.Duration, refresh RefreshFunc) *Cache {
	return &Cache{ttl: ttl, refresh: refresh}
}

// Get returns the cached tip if it's still within TTL; otherwise it calls
// refresh, stores the result (even when ok is false, so a cold-start miss
// isn't re-fetched on every call within the TTL), and returns it.
func (c *Cache) Get(ctx context.Context) (Anchor, bool, error) {
	if anchor, ok, fresh := c.snapshot(); fresh {
		return anchor, ok, nil
	}

	anchor, ok, err := c.refresh(ctx)
	if err != nil {
		return Anchor{}, false, err
	}

	c.mu.Lock()
	c.anchor = anchor
	c.haveEntry = ok
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return anchor, ok, nil
}

// Invalidate forces the next Get to refresh regardless of TTL; used right
// after the anchor advancer publishes a new tip.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}

func (c *Cache) snapshot() (anchor Anchor, ok bool, fresh bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() || time.Since(c.fetchedAt) >= c.ttl {
		return Anchor{}, false, false
	}
	return c.anchor, c.haveEntry, true
}
