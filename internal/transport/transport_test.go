package transport

import (
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-collab/nodecore/internal/nodeerr"
	"github.com/synnergy-collab/nodecore/internal/timesource"
)

func newTestTransport(t *testing.T, id string, maxPeers int) (*Transport, *timesource.Fixed) {
	t.Helper()
	now := &timesource.Fixed{Millis: 1000}
	tr := New(id, Config{MaxPeers: maxPeers}, nil, now, logrus.NewEntry(logrus.New()))
	return tr, now
}

func TestHandshakeDialAccept(t *testing.T) {
	a, _ := newTestTransport(t, "node-a", 8)
	b, _ := newTestTransport(t, "node-b", 8)

	connA, connB := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- b.Accept(connB) }()

	if err := a.Dial("node-b", connA); err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, ok := b.PeerState("node-a"); !ok {
		t.Fatal("expected acceptor to record peer from handshake frame")
	}
}

func TestSendDispatchesToHandler(t *testing.T) {
	a, _ := newTestTransport(t, "node-a", 8)
	b, _ := newTestTransport(t, "node-b", 8)

	connA, connB := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- b.Accept(connB) }()
	if err := a.Dial("node-b", connA); err != nil {
		t.Fatalf("dial: %v", err)
	}
	<-done

	received := make(chan Envelope, 1)
	b.RegisterHandler(Data, func(env Envelope) { received <- env })

	go func() {
		env, err := readFrame(connB)
		if err != nil {
			return
		}
		b.handleEnvelope("node-a", env)
	}()

	if err := a.Send("node-b", Envelope{Type: Data, Payload: []byte("hello")}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case env := <-received:
		if string(env.Payload) != "hello" {
			t.Fatalf("expected payload 'hello', got %q", env.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched envelope")
	}
}

func TestMaxPeersRejectsOverCap(t *testing.T) {
	b, now := newTestTransport(t, "node-b", 1)
	b.peers["existing"] = &Peer{ID: "existing", State: StateConnected, LastSeen: now.Millis}

	connA, connB := net.Pipe()
	defer connA.Close()

	done := make(chan error, 1)
	go func() {
		env := Envelope{Type: Handshake, FromNodeID: "node-c", Timestamp: now.Millis}
		done <- writeFrame(connA, env)
	}()
	err := b.Accept(connB)
	<-done
	if !nodeerr.Is(err, nodeerr.ResourceLimit) {
		t.Fatalf("expected ResourceLimit error, got %v", err)
	}
}

func TestReconnectDelayExponentialWithCap(t *testing.T) {
	base := time.Second
	cap := 60 * time.Second

	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{10, cap},
	}
	for _, c := range cases {
		got := reconnectDelay(base, cap, c.attempts)
		if got != c.want {
			t.Fatalf("attempts=%d: expected %v, got %v", c.attempts, c.want, got)
		}
	}
}
