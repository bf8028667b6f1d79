package notify

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?client=tab-1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", n, hub.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("bad message %s: %v", data, err)
	}
}

func TestWebSocketDeliversNotifications(t *testing.T) {
	hub := NewHub(quietLogger())
	srv := httptest.NewServer(NewWebSocketHandler(hub, nil, quietLogger()))
	defer srv.Close()

	conn := dial(t, srv)
	waitForSubscribers(t, hub, 1)

	if err := hub.Publish(context.Background(), TypeGradeNotification, map[string]any{"earnedMinutes": 4}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	var n Notification
	readJSON(t, conn, &n)
	if n.Type != TypeGradeNotification || !strings.Contains(string(n.Data), `"earnedMinutes":4`) {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestWebSocketPingPong(t *testing.T) {
	hub := NewHub(quietLogger())
	srv := httptest.NewServer(NewWebSocketHandler(hub, nil, quietLogger()))
	defer srv.Close()

	conn := dial(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var msg map[string]string
	readJSON(t, conn, &msg)
	if msg["type"] != "pong" {
		t.Fatalf("expected pong, got %v", msg)
	}
}

func TestWebSocketUnsubscribesOnClose(t *testing.T) {
	hub := NewHub(quietLogger())
	srv := httptest.NewServer(NewWebSocketHandler(hub, nil, quietLogger()))
	defer srv.Close()

	conn := dial(t, srv)
	waitForSubscribers(t, hub, 1)

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	waitForSubscribers(t, hub, 0)
}
