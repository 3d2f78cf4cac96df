// Package authcache caches positive ledger authorization checks. The
// coordinator consults the ledger before every write attempt; a short-TTL
// cache of "authorized" answers keeps hot principals from paying a remote
// round trip per submission. Negative answers are never cached so a freshly
// authorized principal is picked up immediately.
package authcache

import (
	"context"
	"time"

	"veritrail/internal/ledger"
)

// Store holds cached authorization facts. Implementations must treat their
// own failures as cache misses, never as authorization answers.
type Store interface {
	Get(ctx context.Context, principal string) (authorized bool, ok bool)
	Set(ctx context.Context, principal string, ttl time.Duration)
	Invalidate(ctx context.Context, principal string)
}

// Checker answers IsAuthorized through the cache, falling through to the
// ledger on a miss. A nil Store degrades to direct ledger reads.
type Checker struct {
	client ledger.Client
	store  Store
	ttl    time.Duration
}

func NewChecker(client ledger.Client, store Store, ttl time.Duration) *Checker {
	return &Checker{client: client, store: store, ttl: ttl}
}

// IsAuthorized reports whether the principal may write ledger entries.
func (c *Checker) IsAuthorized(ctx context.Context, principal string) (bool, error) {
	if c.store != nil {
		if authorized, ok := c.store.Get(ctx, principal); ok && authorized {
			return true, nil
		}
	}
	authorized, err := c.client.IsAuthorized(ctx, principal)
	if err != nil {
		return false, err
	}
	if authorized && c.store != nil {
		c.store.Set(ctx, principal, c.ttl)
	}
	return authorized, nil
}

// Invalidate drops the cached fact, e.g. after a deauthorization.
func (c *Checker) Invalidate(ctx context.Context, principal string) {
	if c.store != nil {
		c.store.Invalidate(ctx, principal)
	}
}
