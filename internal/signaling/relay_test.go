package signaling

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-collab/nodecore/internal/timesource"
)

func newTestServer(t *testing.T) (*Relay, *httptest.Server, string) {
	t.Helper()
	rl := New(nil, nil, &timesource.Fixed{Millis: 1000}, logrus.NewEntry(logrus.New()))
	srv := httptest.NewServer(rl)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	t.Cleanup(srv.Close)
	return rl, srv, wsURL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestJoinSendsWelcomeFrame(t *testing.T) {
	_, _, url := newTestServer(t)
	conn := dial(t, url)

	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if f.Type != FrameJoin {
		t.Fatalf("expected join frame, got %s", f.Type)
	}
}

func TestPingPong(t *testing.T) {
	_, _, url := newTestServer(t)
	conn := dial(t, url)

	var welcome Frame
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}

	if err := conn.WriteJSON(Frame{Type: FramePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var f Frame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if f.Type != FramePong {
		t.Fatalf("expected pong, got %s", f.Type)
	}
}

func TestSecondClientSeesFirstInPeerList(t *testing.T) {
	_, _, url := newTestServer(t)
	connA := dial(t, url)
	var welcomeA Frame
	if err := connA.ReadJSON(&welcomeA); err != nil {
		t.Fatalf("read welcome A: %v", err)
	}

	connB := dial(t, url)
	var welcomeB Frame
	if err := connB.ReadJSON(&welcomeB); err != nil {
		t.Fatalf("read welcome B: %v", err)
	}
	found := false
	for _, p := range welcomeB.Peers {
		if p.ID == welcomeA.From {
			found = true
		}
	}
	if !found {
		t.Fatal("expected second client's welcome to include the first client's id")
	}
}
