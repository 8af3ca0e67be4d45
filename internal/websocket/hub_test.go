package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/swift-fca/swift/internal/config"
)

func startHub(t *testing.T, cfg *HubConfig) (*Hub, string) {
	t.Helper()
	hub := NewHub(cfg, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string) *websocket.Conn {
	t.Helper()
	want := hub.ClientCount() + 1
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < want {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return event
}

func TestHubBroadcast(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, hub, url)

	hub.Broadcast(Event{
		Type:  EventTypeJobProgress,
		JobID: "job-1",
		Data:  JobProgressEvent{Percent: 42, State: "converting"},
	})

	event := read(t, conn)
	if event.Type != EventTypeJobProgress || event.JobID != "job-1" {
		t.Errorf("event = %+v", event)
	}
	data, ok := event.Data.(map[string]interface{})
	if !ok || data["percent"] != float64(42) {
		t.Errorf("data = %v", event.Data)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp was not set")
	}
}

func TestHubSubscription(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, hub, url)

	err := conn.WriteJSON(ClientMessage{
		Type:         "subscribe",
		Subscription: &SubscriptionRequest{Events: []EventType{EventTypeJobFinished}, Jobs: []string{"b"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	// The hub reads messages in order, so the pong confirms the subscription.
	if err := conn.WriteJSON(ClientMessage{Type: "ping"}); err != nil {
		t.Fatal(err)
	}
	if event := read(t, conn); event.Type != EventTypePong {
		t.Fatalf("event = %+v, want pong", event)
	}

	hub.Broadcast(Event{Type: EventTypeJobProgress, JobID: "b"})
	hub.Broadcast(Event{Type: EventTypeJobFinished, JobID: "a"})
	hub.Broadcast(Event{Type: EventTypeJobFinished, JobID: "b"})

	event := read(t, conn)
	if event.Type != EventTypeJobFinished || event.JobID != "b" {
		t.Errorf("event = %+v", event)
	}
}

func TestHubConnectionEvents(t *testing.T) {
	hub, url := startHub(t, nil)
	first := dial(t, hub, url)
	dial(t, hub, url)

	event := read(t, first)
	if event.Type != EventTypeConnection {
		t.Fatalf("event = %+v", event)
	}
	if data, _ := event.Data.(map[string]interface{}); data["action"] != "connected" {
		t.Errorf("data = %v", event.Data)
	}
}

func TestHubMaxConnections(t *testing.T) {
	cfg := HubConfigFrom(config.GetDefaults().WebSocket)
	cfg.MaxConnections = 1
	hub, url := startHub(t, cfg)
	dial(t, hub, url)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("second dial succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("response = %v", resp)
	}
}

func TestSubscriptionMatches(t *testing.T) {
	tests := []struct {
		name  string
		sub   SubscriptionRequest
		event Event
		want  bool
	}{
		{"empty", SubscriptionRequest{}, Event{Type: EventTypeJobStarted, JobID: "a"}, true},
		{"event type", SubscriptionRequest{Events: []EventType{EventTypeJobFinished}}, Event{Type: EventTypeJobStarted}, false},
		{"job", SubscriptionRequest{Jobs: []string{"a"}}, Event{Type: EventTypeJobStarted, JobID: "a"}, true},
		{"other job", SubscriptionRequest{Jobs: []string{"a"}}, Event{Type: EventTypeJobStarted, JobID: "b"}, false},
		{"event without job", SubscriptionRequest{Jobs: []string{"a"}}, Event{Type: EventTypeConnection}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.matches(tt.event); got != tt.want {
				t.Errorf("matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckOrigin(t *testing.T) {
	cfg := HubConfigFrom(config.GetDefaults().WebSocket)
	cfg.AllowedOrigins = []string{"http://ok.example"}
	hub := NewHub(cfg, zap.NewNop())

	for origin, want := range map[string]bool{
		"":                   true,
		"http://ok.example":  true,
		"http://bad.example": false,
	} {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := hub.checkOrigin(r); got != want {
			t.Errorf("checkOrigin(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	for i := 0; i < sendBuffer+3; i++ {
		hub.Broadcast(Event{Type: EventTypeJobProgress})
	}
	if got := hub.Stats().DroppedEvents; got != 3 {
		t.Errorf("DroppedEvents = %d, want 3", got)
	}
}
