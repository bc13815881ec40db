package transport

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-collab/nodecore/internal/crdt"
	"github.com/synnergy-collab/nodecore/internal/crypto"
	"github.com/synnergy-collab/nodecore/internal/nodeerr"
	"github.com/synnergy-collab/nodecore/internal/timesource"
)

// Handler processes a DATA, QUERY, or PEER_DISCOVERY envelope delivered by
// the transport (spec.md §4.7).
type Handler func(env Envelope)

// conn is the reliable stream channel to one peer.
type conn struct {
	rw io.ReadWriter
}

// Transport implements spec.md C7: per-peer connection bookkeeping,
// envelope dispatch, and signing.
type Transport struct {
	mu    sync.Mutex
	cfg   Config
	selfID string
	peers  map[string]*Peer
	conns  map[string]*conn

	handlers map[MessageType]Handler

	replica *crdt.Replica
	signer  *crypto.Provider
	signKey []byte

	now timesource.Source
	log *logrus.Entry
}

// New constructs a Transport for selfID.
func New(selfID string, cfg Config, replica *crdt.Replica, now timesource.Source, log *logrus.Entry) *Transport {
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = 64
	}
	return &Transport{
		cfg:      cfg,
		selfID:   selfID,
		peers:    make(map[string]*Peer),
		conns:    make(map[string]*conn),
		handlers: make(map[MessageType]Handler),
		replica:  replica,
		now:      now,
		log:      log,
	}
}

// SetSigner configures the provider and signing key used to sign outbound
// envelopes (spec.md §4.7: "signs outbound envelopes using C2 if a key pair
// is loaded").
func (t *Transport) SetSigner(p *crypto.Provider, signingKey []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signer = p
	t.signKey = signingKey
}

// RegisterHandler registers a handler for DATA, QUERY, or PEER_DISCOVERY
// envelopes.
func (t *Transport) RegisterHandler(msgType MessageType, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[msgType] = h
}

// Accept registers rw as the stream channel for an inbound connection once
// its handshake frame has been read, recording the peer in the table
// (spec.md §4.7: "the acceptor records the peer in its table based on this
// frame").
func (t *Transport) Accept(rw io.ReadWriter) error {
	env, err := readFrame(rw)
	if err != nil {
		return nodeerr.Wrap(err, nodeerr.IoError, "read handshake frame")
	}
	if env.Type != Handshake {
		return nodeerr.New(nodeerr.InvalidArgument, "expected handshake frame")
	}

	t.mu.Lock()
	if len(t.peers) >= t.cfg.MaxPeers {
		t.mu.Unlock()
		return nodeerr.New(nodeerr.ResourceLimit, "PeerLimit")
	}
	t.peers[env.FromNodeID] = &Peer{ID: env.FromNodeID, State: StateConnected, LastSeen: t.now.NowMillis()}
	t.conns[env.FromNodeID] = &conn{rw: rw}
	t.mu.Unlock()

	if t.log != nil {
		t.log.WithField("peer", env.FromNodeID).Info("accepted peer handshake")
	}
	return nil
}

// Dial performs the outbound handshake over rw, recording the peer as
// connected (spec.md §4.7: "on successful outbound connect, the node emits
// a handshake frame containing its identifier").
func (t *Transport) Dial(peerID string, rw io.ReadWriter) error {
	t.mu.Lock()
	if len(t.peers) >= t.cfg.MaxPeers {
		t.mu.Unlock()
		return nodeerr.New(nodeerr.ResourceLimit, "PeerLimit")
	}
	t.mu.Unlock()

	env := Envelope{Type: Handshake, FromNodeID: t.selfID, Timestamp: t.now.NowMillis(), Nonce: uuid.NewString()}
	if err := writeFrame(rw, env); err != nil {
		return err
	}

	t.mu.Lock()
	t.peers[peerID] = &Peer{ID: peerID, State: StateConnected, LastSeen: t.now.NowMillis()}
	t.conns[peerID] = &conn{rw: rw}
	t.mu.Unlock()
	return nil
}

// Send signs (if a signer is configured) and writes env to peerID's stream
// connection.
func (t *Transport) Send(peerID string, env Envelope) error {
	t.mu.Lock()
	c, ok := t.conns[peerID]
	signer := t.signer
	signKey := t.signKey
	t.mu.Unlock()
	if !ok {
		return nodeerr.New(nodeerr.NotFound, "peer not connected")
	}

	env.FromNodeID = t.selfID
	env.ToNodeID = peerID
	if env.Timestamp == 0 {
		env.Timestamp = t.now.NowMillis()
	}
	if env.Nonce == "" {
		env.Nonce = uuid.NewString()
	}
	if signer != nil && signKey != nil {
		sig, err := signer.Sign(env.Payload, signKey)
		if err != nil {
			return nodeerr.Wrap(err, nodeerr.IntegrityFailure, "sign envelope")
		}
		env.Signature = sig
	}
	return writeFrame(c.rw, env)
}

// ReceiveLoop reads frames from peerID's connection until it errors or ctx
// is cancelled, dispatching each to handleEnvelope. Socket errors are
// non-fatal: the peer is demoted to disconnected (spec.md §4.7).
func (t *Transport) ReceiveLoop(ctx context.Context, peerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t.mu.Lock()
		c, ok := t.conns[peerID]
		t.mu.Unlock()
		if !ok {
			return
		}

		env, err := readFrame(c.rw)
		if err != nil {
			t.demote(peerID)
			return
		}
		t.handleEnvelope(peerID, env)
	}
}

func (t *Transport) demote(peerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[peerID]; ok {
		p.State = StateDisconnected
	}
	delete(t.conns, peerID)
	if t.log != nil {
		t.log.WithField("peer", peerID).Warn("peer demoted to disconnected")
	}
}

// handleEnvelope dispatches env per spec.md §4.7's message-type table.
func (t *Transport) handleEnvelope(peerID string, env Envelope) {
	t.mu.Lock()
	if p, ok := t.peers[peerID]; ok {
		p.LastSeen = t.now.NowMillis()
		if env.Timestamp > 0 {
			p.LatencyMillis = t.now.NowMillis() - env.Timestamp
		}
	}
	t.mu.Unlock()

	switch env.Type {
	case Heartbeat:
		_ = t.Send(peerID, Envelope{Type: Heartbeat})
	case CRDTOp:
		if t.replica != nil {
			var op crdt.Operation
			if err := decodePayload(env.Payload, &op); err == nil {
				t.replica.Merge([]crdt.Operation{op})
			}
		}
	case Sync:
		// Reserved for C9; delivered via the registered SYNC handler if any.
		t.dispatch(env)
	default:
		t.dispatch(env)
	}
}

func (t *Transport) dispatch(env Envelope) {
	t.mu.Lock()
	h, ok := t.handlers[env.Type]
	t.mu.Unlock()
	if ok {
		h(env)
	}
}

// Peers returns a snapshot of the known peer table.
func (t *Transport) Peers() []Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, *p)
	}
	return out
}

// PeerState looks up one peer's current connection state.
func (t *Transport) PeerState(peerID string) (PeerState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[peerID]
	if !ok {
		return StateDisconnected, false
	}
	return p.State, true
}
