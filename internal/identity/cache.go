package identity

import (
	"context"
	"sync"
	"time"

	"github.com/parable/backend/internal/models"
)

type cacheEntry struct {
	identity models.Identity
	expires  time.Time
}

// CachingResolver wraps a Resolver with a TTL-based in-memory cache keyed by
// user id, bounding repeated profile lookups on hot request paths.
type CachingResolver struct {
	base *Resolver
	ttl  time.Duration

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingResolver returns a resolver that caches identities for the
// provided TTL.
func NewCachingResolver(base *Resolver, ttl time.Duration) *CachingResolver {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingResolver{
		base:  base,
		ttl:   ttl,
		items: make(map[string]cacheEntry),
	}
}

// Resolve returns the cached identity when fresh, otherwise it delegates to
// the underlying resolver and stores the result.
func (c *CachingResolver) Resolve(ctx context.Context, userID string) models.Identity {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.items[userID]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.identity
	}

	identity := c.base.Resolve(ctx, userID)

	c.mu.Lock()
	c.items[userID] = cacheEntry{identity: identity, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return identity
}

// Invalidate drops the cached identity for userID, as after a profile edit.
func (c *CachingResolver) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.items, userID)
	c.mu.Unlock()
}
