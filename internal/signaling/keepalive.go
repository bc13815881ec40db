package signaling

import (
	"context"
	"time"
)

// RunKeepalive disconnects clients quiet for more than 60s and triggers a
// peer-leave broadcast (spec.md §4.8).
func (rl *Relay) RunKeepalive(ctx context.Context, interval time.Duration) (cancel func()) {
	ctx, cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.sweepQuiet()
			}
		}
	}()
	return cancel
}

func (rl *Relay) sweepQuiet() {
	now := rl.now.NowMillis()
	rl.mu.Lock()
	var quiet []*client
	for _, c := range rl.clients {
		if now-c.lastSeen > keepaliveTimeout.Milliseconds() {
			quiet = append(quiet, c)
		}
	}
	rl.mu.Unlock()

	for _, c := range quiet {
		_ = c.conn.Close()
		rl.removeClient(c.id)
	}
}
