package crdt

import (
	"context"
	"time"
)

// RunGC starts the periodic tombstone garbage-collection task described in
// spec.md §4.3: deletes tombstoned entries whose age exceeds
// TombstoneLifetime. It returns a cancel function; shutdown cancels the
// task (spec.md §5, §9).
func (r *Replica) RunGC(ctx context.Context, interval time.Duration) (cancel func()) {
	ctx, cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.collectTombstones()
			}
		}
	}()
	return cancel
}

// collectTombstones removes tombstoned entries older than
// TombstoneLifetime. It never removes a tombstone still younger than the
// policy window (spec.md §4.3, §8 property 6).
func (r *Replica) collectTombstones() {
	now := r.now.NowMillis()
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, ent := range r.data {
		if !ent.Tombstone {
			continue
		}
		if now-ent.LastModified > r.cfg.TombstoneLifetime {
			delete(r.data, key)
		}
	}
}
