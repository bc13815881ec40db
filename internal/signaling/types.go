// Package signaling implements the WebRTC-style signaling relay (spec.md C8
// §4.8): a duplex frame channel at /p2p-signaling that relays session
// descriptions and ICE candidates between otherwise-unreachable peers and
// maintains a peer registry. It relays frames only — the ICE/DTLS
// negotiation itself happens peer-to-peer, outside this package.
package signaling

import (
	"github.com/pion/webrtc/v4"
)

// FrameType names the signaling envelope kinds (spec.md §4.8).
type FrameType string

const (
	FrameJoin        FrameType = "join"
	FramePeerLeave   FrameType = "peer-leave"
	FrameOffer       FrameType = "offer"
	FrameAnswer      FrameType = "answer"
	FrameICECandidate FrameType = "ice-candidate"
	FramePing        FrameType = "ping"
	FramePong        FrameType = "pong"
	FramePeerList    FrameType = "peer-list"
)

// Frame is the JSON envelope exchanged over the signaling socket.
type Frame struct {
	Type      FrameType                     `json:"type"`
	From      string                        `json:"from,omitempty"`
	To        string                        `json:"to,omitempty"`
	Peers     []PeerInfo                    `json:"peers,omitempty"`
	Offer     *webrtc.SessionDescription     `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription     `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit       `json:"candidate,omitempty"`
}

// PeerInfo is the registry entry exposed to joining clients.
type PeerInfo struct {
	ID string `json:"id"`
}
