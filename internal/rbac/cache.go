package rbac

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL bounds how long a resolved permission set is trusted
// without an explicit invalidation.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	set       PermissionSet
	expiresAt time.Time
}

// PermissionCache memoizes resolver output per user for a bounded TTL.
// Concurrent misses for the same user are coalesced into a single resolver
// call. Invalidation is synchronous: once Invalidate returns, the next
// lookup re-resolves.
type PermissionCache struct {
	mu      sync.RWMutex
	entries map[int64]cacheEntry
	gens    map[int64]uint64
	allGen  uint64
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time
	observe func(hit bool)
}

// CacheOption configures the PermissionCache.
type CacheOption func(*PermissionCache)

// WithCacheClock overrides the time source, for tests.
func WithCacheClock(fn func() time.Time) CacheOption {
	return func(c *PermissionCache) {
		if fn != nil {
			c.now = fn
		}
	}
}

// WithLookupObserver installs a hit/miss callback, for metrics.
func WithLookupObserver(fn func(hit bool)) CacheOption {
	return func(c *PermissionCache) {
		c.observe = fn
	}
}

// NewPermissionCache constructs a cache with the given TTL.
func NewPermissionCache(ttl time.Duration, opts ...CacheOption) *PermissionCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &PermissionCache{
		entries: make(map[int64]cacheEntry),
		gens:    make(map[int64]uint64),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrResolve returns the cached permission set for userID, invoking
// resolve on miss or expiry and memoizing the result. Flights are keyed by
// the invalidation generation: an Invalidate that lands while a resolve is
// in flight discards that flight's result, and callers arriving after the
// invalidation start a fresh flight instead of joining the stale one.
func (c *PermissionCache) GetOrResolve(ctx context.Context, userID int64, resolve func(context.Context) (PermissionSet, error)) (PermissionSet, error) {
	if set, ok := c.lookup(userID); ok {
		c.record(true)
		return set, nil
	}
	c.record(false)

	genUser, genAll := c.generation(userID)
	key := strconv.FormatInt(userID, 10) + "." + strconv.FormatUint(genUser, 10) + "." + strconv.FormatUint(genAll, 10)
	v, err, _ := c.group.Do(key, func() (any, error) {
		// Double check after winning the flight: another caller may have
		// stored a fresh entry already.
		if set, ok := c.lookup(userID); ok {
			return set, nil
		}
		set, err := resolve(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gens[userID] == genUser && c.allGen == genAll {
			c.entries[userID] = cacheEntry{set: set, expiresAt: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(PermissionSet), nil
}

// Invalidate drops the cached entry for userID. Mutating code paths must
// call this before responding, so a follow-up read never sees stale data.
func (c *PermissionCache) Invalidate(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.gens[userID]++
	c.mu.Unlock()
}

// InvalidateAll clears the whole cache, for bulk catalog changes.
func (c *PermissionCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[int64]cacheEntry)
	c.gens = make(map[int64]uint64)
	c.allGen++
	c.mu.Unlock()
}

func (c *PermissionCache) generation(userID int64) (uint64, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[userID], c.allGen
}

// Len reports the number of live entries, expired or not.
func (c *PermissionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *PermissionCache) lookup(userID int64) (PermissionSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[userID]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.set, true
}

func (c *PermissionCache) record(hit bool) {
	if c.observe != nil {
		c.observe(hit)
	}
}
