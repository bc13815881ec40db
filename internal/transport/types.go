// Package transport implements the peer transport (spec.md C7 §4.7): one
// reliable stream channel per peer, framed envelopes, handshake,
// heartbeat-driven liveness, and exponential-backoff reconnect, over
// length-prefixed framed net.Conn rather than a libp2p stream (see
// DESIGN.md for why libp2p is not in this module's dependency set). There
// is no separate datagram channel: heartbeats and discovery envelopes travel
// on the same stream as application traffic.
package transport

import "time"

// MessageType names the envelope kinds dispatched by spec.md §4.7.
type MessageType string

const (
	Heartbeat     MessageType = "HEARTBEAT"
	Sync          MessageType = "SYNC"
	CRDTOp        MessageType = "CRDT_OP"
	Data          MessageType = "DATA"
	Query         MessageType = "QUERY"
	PeerDiscovery MessageType = "PEER_DISCOVERY"
	Handshake     MessageType = "HANDSHAKE"
)

// Envelope is the wire message described in spec.md §4.7.
type Envelope struct {
	Type        MessageType    `json:"type"`
	FromNodeID  string         `json:"fromNodeId"`
	ToNodeID    string         `json:"toNodeId,omitempty"`
	Timestamp   int64          `json:"timestamp"`
	Nonce       string         `json:"nonce"`
	Payload     []byte         `json:"payload,omitempty"`
	Signature   []byte         `json:"signature,omitempty"`
	VectorClock map[string]uint64 `json:"vectorClock,omitempty"`
}

// PeerState is the connection lifecycle state of a remote peer.
type PeerState int

const (
	StateConnecting PeerState = iota
	StateConnected
	StateDisconnected
)

func (s PeerState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Peer tracks a single remote node's transport-level state.
type Peer struct {
	ID                 string
	Address            string
	State              PeerState
	LastSeen           int64 // epoch ms of the last received frame
	LatencyMillis       int64
	ReconnectAttempts  int
}

// Config bounds and tunes a Transport (spec.md §6: p2p.*).
type Config struct {
	MaxPeers             int
	HeartbeatInterval    time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int
}

// reconnectDelay implements spec.md §4.7's backoff: min(base*2^attempts, cap).
func reconnectDelay(base, cap time.Duration, attempts int) time.Duration {
	d := base
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
