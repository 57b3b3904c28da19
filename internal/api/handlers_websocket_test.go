// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (s *testStack) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws" + query
	header := http.Header{"Origin": []string{testOrigin}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func wsSend(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	data, err := json.Marshal(map[string]any{"type": msgType, "payload": payload})
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

func wsReadUntil(t *testing.T, conn *websocket.Conn, msgType string) wsFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		var f wsFrame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("bad frame %s: %v", data, err)
		}
		if f.Type == msgType {
			return f
		}
	}
}

func TestWebSocket_PaintReachesOtherMember(t *testing.T) {
	s := newTestStack(t, 0)

	alice := s.dial(t, "?actorId=alice")
	bob := s.dial(t, "?actorId=bob")

	wsSend(t, alice, "JOIN", map[string]any{"boardId": "main"})
	wsReadUntil(t, alice, "SNAPSHOT")
	wsSend(t, bob, "JOIN", map[string]any{"boardId": "main"})
	wsReadUntil(t, bob, "SNAPSHOT")

	wsSend(t, bob, "PAINT", map[string]any{"x": 2, "y": 3, "color": "#00ff00"})

	f := wsReadUntil(t, alice, "UPDATE")
	var update struct {
		BoardID string `json:"boardId"`
		X       int    `json:"x"`
		Y       int    `json:"y"`
		Color   string `json:"color"`
		ActorID string `json:"actorId"`
	}
	if err := json.Unmarshal(f.Payload, &update); err != nil {
		t.Fatal(err)
	}
	if update.BoardID != "main" || update.X != 2 || update.Y != 3 || update.Color != "#00ff00" || update.ActorID != "bob" {
		t.Errorf("update = %+v", update)
	}

	// Room listing reflects both members
	_, env := s.do(t, http.MethodGet, "/api/v1/rooms", "", nil)
	rooms := decodeData[RoomsResponse](t, env)
	if len(rooms.Rooms) != 1 || rooms.Rooms[0].BoardID != "main" || rooms.Rooms[0].MemberCount != 2 {
		t.Errorf("rooms = %+v", rooms)
	}
}

func TestWebSocket_RESTPaintIsBroadcast(t *testing.T) {
	s := newTestStack(t, 0)

	alice := s.dial(t, "")
	wsSend(t, alice, "JOIN", map[string]any{"boardId": "main", "actorId": "alice"})
	wsReadUntil(t, alice, "SNAPSHOT")

	if resp, env := s.do(t, http.MethodPost, "/api/v1/boards/main/pixels", `{"x":1,"y":1,"color":"#123"}`, actor("rest-client")); resp.StatusCode != http.StatusOK {
		t.Fatalf("paint status = %d, error = %+v", resp.StatusCode, env.Error)
	}
	wsReadUntil(t, alice, "UPDATE")
}

func TestWebSocket_OriginRejected(t *testing.T) {
	s := newTestStack(t, 0)
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"

	tests := []struct {
		name   string
		header http.Header
	}{
		{"missing origin", http.Header{}},
		{"foreign origin", http.Header{"Origin": []string{"http://evil.test"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(url, tt.header)
			if err == nil {
				_ = conn.Close()
				t.Fatal("expected handshake failure")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %+v, want 403", resp)
			}
		})
	}
}

func TestWebSocket_HubUnavailable(t *testing.T) {
	h := NewHandler(HandlerDeps{})
	rec := httptest.NewRecorder()
	h.WebSocket(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestActorFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{"header wins", "/ws?actorId=query", "header", "header"},
		{"query fallback", "/ws?actorId=query", "", "query"},
		{"absent", "/ws", "", ""},
		{"malformed is dropped", "/ws?actorId=has%20space", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				r.Header.Set(ActorIDHeader, tt.header)
			}
			if got := actorFromRequest(r); got != tt.want {
				t.Errorf("actorFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}
