package transport

import (
	"context"
	"time"
)

// RunHeartbeat sends a heartbeat to every connected peer on cfg.HeartbeatInterval
// and marks peers quiet for more than 2x that interval as disconnected,
// scheduling reconnect backoff (spec.md §4.7).
func (t *Transport) RunHeartbeat(ctx context.Context, dial func(peerID string) error) (cancel func()) {
	interval := t.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
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
				t.heartbeatTick(ctx, interval, dial)
			}
		}
	}()
	return cancel
}

func (t *Transport) heartbeatTick(ctx context.Context, interval time.Duration, dial func(peerID string) error) {
	quietThreshold := 2 * interval.Milliseconds()
	now := t.now.NowMillis()

	t.mu.Lock()
	var toHeartbeat, toReconnect []string
	for id, p := range t.peers {
		switch p.State {
		case StateConnected:
			if now-p.LastSeen > quietThreshold {
				p.State = StateDisconnected
				toReconnect = append(toReconnect, id)
			} else {
				toHeartbeat = append(toHeartbeat, id)
			}
		case StateDisconnected:
			toReconnect = append(toReconnect, id)
		}
	}
	t.mu.Unlock()

	for _, id := range toHeartbeat {
		_ = t.Send(id, Envelope{Type: Heartbeat, Timestamp: now})
	}
	if dial == nil {
		return
	}
	for _, id := range toReconnect {
		t.scheduleReconnect(ctx, id, dial)
	}
}

// scheduleReconnect waits out the exponential backoff for peerID, then
// invokes dial once. It gives up once MaxReconnectAttempts is exceeded
// (spec.md §4.7, §9 Open Question: the attempt counter is per-peer and
// resets to zero on a successful reconnect).
func (t *Transport) scheduleReconnect(ctx context.Context, peerID string, dial func(peerID string) error) {
	t.mu.Lock()
	p, ok := t.peers[peerID]
	if !ok {
		t.mu.Unlock()
		return
	}
	attempts := p.ReconnectAttempts
	maxAttempts := t.cfg.MaxReconnectAttempts
	t.mu.Unlock()
	if maxAttempts > 0 && attempts >= maxAttempts {
		return
	}

	base := t.cfg.ReconnectBaseDelay
	if base <= 0 {
		base = time.Second
	}
	cap := t.cfg.MaxReconnectDelay
	if cap <= 0 {
		cap = 60 * time.Second
	}
	delay := reconnectDelay(base, cap, attempts)

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := dial(peerID); err != nil {
			t.mu.Lock()
			if p, ok := t.peers[peerID]; ok {
				p.ReconnectAttempts++
			}
			t.mu.Unlock()
			return
		}
		t.mu.Lock()
		if p, ok := t.peers[peerID]; ok {
			p.ReconnectAttempts = 0
			p.State = StateConnected
		}
		t.mu.Unlock()
	}()
}
