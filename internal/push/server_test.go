package push

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-collab/nodecore/internal/timesource"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := New(&timesource.Fixed{Millis: 1000}, logrus.NewEntry(logrus.New()))
	t.Cleanup(s.Close)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
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

func TestConnectReceivesWelcome(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url)

	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if f.Type != FrameWelcome {
		t.Fatalf("expected welcome frame, got %s", f.Type)
	}
}

func TestSubscribeReceivesChannelData(t *testing.T) {
	s, url := newTestServer(t)
	s.RegisterProvider("metrics", func() interface{} { return map[string]int{"ops": 1} }, 20*time.Millisecond)

	conn := dial(t, url)
	var welcome Frame
	conn.ReadJSON(&welcome)

	if err := conn.WriteJSON(Frame{Type: FrameSubscribe, Channels: []string{"metrics"}}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read data frame: %v", err)
	}
	if f.Type != FrameData || f.Channel != "metrics" {
		t.Fatalf("expected metrics data frame, got %+v", f)
	}
}

func TestUnsubscribeStopsTimer(t *testing.T) {
	s, url := newTestServer(t)
	s.RegisterProvider("metrics", func() interface{} { return 1 }, 10*time.Millisecond)

	conn := dial(t, url)
	var welcome Frame
	conn.ReadJSON(&welcome)
	conn.WriteJSON(Frame{Type: FrameSubscribe, Channels: []string{"metrics"}})

	var first Frame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first data frame: %v", err)
	}

	conn.WriteJSON(Frame{Type: FrameUnsubscribe, Channels: []string{"metrics"}})
	time.Sleep(50 * time.Millisecond)

	s.mu.Lock()
	_, running := s.timers["metrics"]
	s.mu.Unlock()
	if running {
		t.Fatal("expected channel timer to stop once no subscribers remain")
	}
}

func TestPingTickClosesStaleConnection(t *testing.T) {
	s, url := newTestServer(t)
	conn := dial(t, url)
	var welcome Frame
	conn.ReadJSON(&welcome)

	s.mu.Lock()
	for _, sub := range s.subs {
		sub.lastPong = 0
	}
	s.mu.Unlock()

	// Simulate a clock far enough past the timeout for pingTick to prune it.
	fixed := s.now.(*timesource.Fixed)
	fixed.Advance(61 * time.Second)
	s.pingTick()

	s.mu.Lock()
	count := len(s.subs)
	s.mu.Unlock()
	if count != 0 {
		t.Fatalf("expected stale subscriber to be removed, got %d remaining", count)
	}
}
