package push

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-collab/nodecore/internal/timesource"
)

// subscriber is one connected push client.
type subscriber struct {
	id       string
	conn     *websocket.Conn
	mu       sync.Mutex
	channels map[string]bool
	lastPong int64
}

func (s *subscriber) send(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(f)
}

// channelTimer tracks the broadcast ticker running for one named channel.
type channelTimer struct {
	cancel func()
}

// Server implements spec.md C10.
type Server struct {
	mu       sync.Mutex
	subs     map[string]*subscriber
	timers   map[string]*channelTimer
	cadence  map[string]time.Duration
	providers map[string]Provider

	now timesource.Source
	log *logrus.Entry

	upgrader websocket.Upgrader

	ctx    context.Context
	cancel func()
}

// New constructs a Server. The returned Server's background tasks run
// until Close is called.
func New(now timesource.Source, log *logrus.Entry) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	cadence := make(map[string]time.Duration, len(defaultCadence))
	for k, v := range defaultCadence {
		cadence[k] = v
	}
	s := &Server{
		subs:      make(map[string]*subscriber),
		timers:    make(map[string]*channelTimer),
		cadence:   cadence,
		providers: make(map[string]Provider),
		now:       now,
		log:       log,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		ctx:       ctx,
		cancel:    cancel,
	}
	go s.runPingLoop()
	return s
}

// RegisterProvider registers the snapshot-producing function for a
// channel, overriding the default cadence if cadence > 0.
func (s *Server) RegisterProvider(channel string, p Provider, cadence time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[channel] = p
	if cadence > 0 {
		s.cadence[channel] = cadence
	} else if _, ok := s.cadence[channel]; !ok {
		s.cadence[channel] = time.Second
	}
}

// Close stops all background tasks.
func (s *Server) Close() {
	s.cancel()
}

// ServeHTTP accepts a duplex push connection, assigns it an identifier,
// and sends a welcome frame (spec.md §4.10).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.log != nil {
			s.log.WithField("error", err).Warn("push upgrade failed")
		}
		return
	}
	sub := &subscriber{id: uuid.NewString(), conn: conn, channels: make(map[string]bool), lastPong: s.now.NowMillis()}

	s.mu.Lock()
	s.subs[sub.id] = sub
	s.mu.Unlock()

	if err := sub.send(Frame{Type: FrameWelcome, Channel: sub.id}); err != nil {
		s.removeSubscriber(sub.id)
		return
	}

	defer s.removeSubscriber(sub.id)
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		s.handleFrame(sub, f)
	}
}

func (s *Server) handleFrame(sub *subscriber, f Frame) {
	switch f.Type {
	case FrameSubscribe:
		s.subscribe(sub, f.Channels)
	case FrameUnsubscribe:
		s.unsubscribe(sub, f.Channels)
	case FramePong:
		sub.mu.Lock()
		sub.lastPong = s.now.NowMillis()
		sub.mu.Unlock()
	}
}

// subscribe adds channels to sub's subscription set, starting each
// channel's broadcast timer if not already running (spec.md §4.10).
func (s *Server) subscribe(sub *subscriber, channels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		sub.channels[ch] = true
		if _, running := s.timers[ch]; !running {
			s.timers[ch] = s.startChannelTimer(ch)
		}
	}
}

// unsubscribe removes channels from sub's subscription set; when the last
// subscriber of a channel disconnects, its timer stops.
func (s *Server) unsubscribe(sub *subscriber, channels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		delete(sub.channels, ch)
	}
	s.stopTimersWithNoSubscribersLocked()
}

func (s *Server) stopTimersWithNoSubscribersLocked() {
	for ch, timer := range s.timers {
		if !s.anySubscribedLocked(ch) {
			timer.cancel()
			delete(s.timers, ch)
		}
	}
}

func (s *Server) anySubscribedLocked(channel string) bool {
	for _, sub := range s.subs {
		if sub.channels[channel] {
			return true
		}
	}
	return false
}

func (s *Server) startChannelTimer(channel string) *channelTimer {
	interval := s.cadence[channel]
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(s.ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.broadcastChannel(channel)
			}
		}
	}()
	return &channelTimer{cancel: cancel}
}

// broadcastChannel calls the channel's provider and writes the resulting
// snapshot to every subscriber of that channel (spec.md §4.10; order is
// preserved per (channel, subscriber), since each channel has exactly one
// ticker goroutine producing frames serially).
func (s *Server) broadcastChannel(channel string) {
	s.mu.Lock()
	provider, ok := s.providers[channel]
	var targets []*subscriber
	if ok {
		for _, sub := range s.subs {
			if sub.channels[channel] {
				targets = append(targets, sub)
			}
		}
	}
	s.mu.Unlock()
	if !ok || len(targets) == 0 {
		return
	}

	snapshot := provider()
	for _, sub := range targets {
		_ = sub.send(Frame{Type: FrameData, Channel: channel, Snapshot: snapshot})
	}
}

func (s *Server) removeSubscriber(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	s.stopTimersWithNoSubscribersLocked()
}

// runPingLoop pings every connection every 30s and force-closes any
// connection that hasn't acknowledged a ping within 60s (spec.md §4.10).
func (s *Server) runPingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.pingTick()
		}
	}
}

func (s *Server) pingTick() {
	now := s.now.NowMillis()
	s.mu.Lock()
	var stale []*subscriber
	var alive []*subscriber
	for _, sub := range s.subs {
		if now-sub.lastPong > pongTimeout.Milliseconds() {
			stale = append(stale, sub)
		} else {
			alive = append(alive, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range stale {
		_ = sub.conn.Close()
		s.removeSubscriber(sub.id)
	}
	for _, sub := range alive {
		_ = sub.send(Frame{Type: FramePing})
	}
}
