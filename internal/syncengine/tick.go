package syncengine

import (
	"context"
	"time"
)

// RunTick starts the internal timer that re-evaluates sync state even when
// no broadcast was explicitly requested (spec.md §4.9, default 5s).
func (e *Engine) RunTick(ctx context.Context, interval time.Duration) (cancel func()) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ctx, cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.tick()
			}
		}
	}()
	return cancel
}

func (e *Engine) tick() {
	e.mu.Lock()
	if len(e.pending) == 0 && e.state == StatePending {
		e.state = StateOK
	}
	e.mu.Unlock()
}
