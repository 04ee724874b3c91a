package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xk2013awa/CodingSnake/internal/game"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *WebSocketHub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Registration happens server side just after the handshake.
	time.Sleep(50 * time.Millisecond)
	return conn
}

func TestWebSocketBroadcastDelta(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	conn := dialHub(t, hub)

	delta := &game.DeltaState{
		Round:   5,
		Players: []game.PlayerDelta{{ID: "p1", Head: game.Point{X: 2, Y: 3}, Length: 4}},
	}
	hub.BroadcastRound(&game.MapState{Round: 5}, delta)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var msg struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if msg.Kind != "delta" {
		t.Fatalf("kind = %q, want delta", msg.Kind)
	}

	var got game.DeltaState
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("bad delta payload: %v", err)
	}
	if got.Round != 5 || len(got.Players) != 1 {
		t.Errorf("delta = %+v", got)
	}
}

func TestWebSocketBroadcastFullState(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	conn := dialHub(t, hub)

	// A nil delta means clients must rebuild from the full snapshot.
	hub.BroadcastRound(&game.MapState{Round: 1, Players: []game.Player{{ID: "p1"}}}, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var msg struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if msg.Kind != "state" {
		t.Errorf("kind = %q, want state", msg.Kind)
	}
}
