package storage

import (
	"context"
	"time"
)

// RunExpirySweep starts the background sweep that deletes expired entries
// (spec.md §4.4: "A background sweep deletes expired entries"). It returns
// a cancel function; shutdown cancels it (spec.md §5, §9).
func (m *Manager) RunExpirySweep(ctx context.Context, interval time.Duration) (cancel func()) {
	ctx, cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweepExpired()
			}
		}
	}()
	return cancel
}

func (m *Manager) sweepExpired() {
	now := m.now.NowMillis()
	m.mu.Lock()
	var expired []string
	for k, meta := range m.index {
		if meta.ExpiresAt != nil && *meta.ExpiresAt <= now {
			expired = append(expired, k)
		}
	}
	for _, k := range expired {
		m.deleteLocked(k)
	}
	m.mu.Unlock()
}
