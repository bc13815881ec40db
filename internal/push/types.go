// Package push implements the real-time push fan-out subsystem (spec.md
// C10 §4.10): named channels streamed to subscribed clients over a duplex
// frame channel, each on its own cadence.
package push

import "time"

// FrameType names the push protocol's envelope kinds.
type FrameType string

const (
	FrameWelcome     FrameType = "welcome"
	FrameSubscribe   FrameType = "SUBSCRIBE"
	FrameUnsubscribe FrameType = "UNSUBSCRIBE"
	FrameData        FrameType = "data"
	FramePing        FrameType = "ping"
	FramePong        FrameType = "pong"
)

// Frame is the JSON envelope exchanged over the push socket.
type Frame struct {
	Type     FrameType       `json:"type"`
	Channels []string        `json:"channels,omitempty"`
	Channel  string          `json:"channel,omitempty"`
	Snapshot interface{}     `json:"snapshot,omitempty"`
}

// defaultCadence is spec.md §4.10's per-channel tick interval table.
var defaultCadence = map[string]time.Duration{
	"metrics": 500 * time.Millisecond,
	"sync":    2000 * time.Millisecond,
	"logs":    1000 * time.Millisecond,
	"peers":   5000 * time.Millisecond,
}

// Provider produces the latest snapshot for one channel.
type Provider func() interface{}

const (
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
)
