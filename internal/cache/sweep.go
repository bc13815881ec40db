package cache

import (
	"context"
	"time"
)

// RunTTLSweep starts a background task that removes expired entries from
// every tier on the given interval (spec.md §4.5: cache entries expire
// independently of eviction pressure). It returns a cancel function.
func (c *Cache) RunTTLSweep(ctx context.Context, interval time.Duration) (cancel func()) {
	ctx, cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweepExpired()
			}
		}
	}()
	return cancel
}

func (c *Cache) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range c.l1.Keys() {
		if e, ok := c.l1.Peek(k); ok && c.expired(e) {
			c.l1.Remove(k)
		}
	}
	for _, k := range c.l2.Keys() {
		if e, ok := c.l2.Peek(k); ok && c.expired(e) {
			c.l2.Remove(k)
		}
	}
	for k, e := range c.l3 {
		if c.expired(e) {
			delete(c.l3, k)
		}
	}
}
