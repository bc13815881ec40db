package signaling

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-collab/nodecore/internal/dht"
	"github.com/synnergy-collab/nodecore/internal/secrand"
	"github.com/synnergy-collab/nodecore/internal/timesource"
)

const keepaliveTimeout = 60 * time.Second

// client is one connected signaling peer.
type client struct {
	id       string
	conn     *websocket.Conn
	mu       sync.Mutex // guards concurrent WriteJSON calls
	lastSeen int64
}

func (c *client) send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(f)
}

// Relay implements spec.md C8.
type Relay struct {
	mu      sync.Mutex
	clients map[string]*client

	table *dht.Table
	rand  secrand.Source
	now   timesource.Source
	log   *logrus.Entry

	upgrader websocket.Upgrader
}

// New constructs a Relay. table and rand may be nil if DHT-mixed peer
// lists are not needed (e.g. in tests).
func New(table *dht.Table, rand secrand.Source, now timesource.Source, log *logrus.Entry) *Relay {
	return &Relay{
		clients: make(map[string]*client),
		table:   table,
		rand:    rand,
		now:     now,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements the /p2p-signaling endpoint (spec.md §4.8).
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if rl.log != nil {
			rl.log.WithField("error", err).Warn("signaling upgrade failed")
		}
		return
	}
	rl.handleConn(conn)
}

func (rl *Relay) handleConn(conn *websocket.Conn) {
	c := &client{id: uuid.NewString(), conn: conn, lastSeen: rl.now.NowMillis()}

	rl.mu.Lock()
	rl.clients[c.id] = c
	peers := rl.peerListLocked()
	rl.mu.Unlock()

	if err := c.send(Frame{Type: FrameJoin, From: c.id, Peers: peers}); err != nil {
		rl.removeClient(c.id)
		return
	}
	rl.broadcastExcept(c.id, Frame{Type: FrameJoin, From: c.id})

	defer rl.removeClient(c.id)
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		rl.handleFrame(c, f)
	}
}

func (rl *Relay) handleFrame(c *client, f Frame) {
	c.lastSeen = rl.now.NowMillis()
	f.From = c.id

	switch f.Type {
	case FramePing:
		_ = c.send(Frame{Type: FramePong})
	case FramePeerList:
		rl.mu.Lock()
		peers := rl.peerListLocked()
		rl.mu.Unlock()
		_ = c.send(Frame{Type: FramePeerList, Peers: peers})
	case FrameOffer, FrameAnswer, FrameICECandidate:
		rl.forward(f)
	}
}

// forward routes offer/answer/ice-candidate frames to the matching
// connection by the envelope's `to` field (spec.md §4.8).
func (rl *Relay) forward(f Frame) {
	rl.mu.Lock()
	target, ok := rl.clients[f.To]
	rl.mu.Unlock()
	if !ok {
		return
	}
	_ = target.send(f)
}

func (rl *Relay) broadcastExcept(exceptID string, f Frame) {
	rl.mu.Lock()
	targets := make([]*client, 0, len(rl.clients))
	for id, c := range rl.clients {
		if id != exceptID {
			targets = append(targets, c)
		}
	}
	rl.mu.Unlock()
	for _, c := range targets {
		_ = c.send(f)
	}
}

func (rl *Relay) removeClient(id string) {
	rl.mu.Lock()
	_, existed := rl.clients[id]
	delete(rl.clients, id)
	rl.mu.Unlock()
	if existed {
		rl.broadcastExcept(id, Frame{Type: FramePeerLeave, From: id})
	}
}

// peerListLocked returns the union of the connected-peer registry and up
// to 10 random DHT nodes, de-duplicated by identifier (spec.md §4.8).
// Callers must hold rl.mu.
func (rl *Relay) peerListLocked() []PeerInfo {
	seen := make(map[string]bool, len(rl.clients))
	out := make([]PeerInfo, 0, len(rl.clients))
	for id := range rl.clients {
		seen[id] = true
		out = append(out, PeerInfo{ID: id})
	}
	if rl.table != nil {
		for _, n := range rl.table.GetRandomNodes(10, rl.rand) {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			out = append(out, PeerInfo{ID: n.ID})
		}
	}
	return out
}
