package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"roulette/internal/app"
	"roulette/internal/domain"
	"roulette/internal/store"
)

// inbound is any message the server sends: a ServerMessage or a view event
type inbound struct {
	Type    string          `json:"type"`
	ViewID  string          `json:"viewId"`
	Payload json.RawMessage `json:"payload"`
}

func newTestHandler(t *testing.T) (*httptest.Server, *app.Hub) {
	t.Helper()
	return newTestHandlerWithOrigins(t, []string{"*"})
}

func newTestHandlerWithOrigins(t *testing.T, origins []string) (*httptest.Server, *app.Hub) {
	t.Helper()

	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "roulette.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	gw := store.NewSQLiteGateway(db, store.NewLocalNotifier(), store.DefaultOptions(), zerolog.Nop())
	hub := app.NewHub(gw, app.HubOptions{Table: app.DefaultTableOptions()}, zerolog.Nop())
	ts := httptest.NewServer(NewHandler(hub, origins, zerolog.Nop()))

	t.Cleanup(func() {
		ts.Close()
		hub.Close()
		_ = gw.Close()
	})
	return ts, hub
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// next reads messages until one of the given type arrives
func next(t *testing.T, conn *websocket.Conn, typ string) inbound {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if msg.Type == typ {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, typ MessageType, payload interface{}) {
	t.Helper()

	msg := map[string]interface{}{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func connected(t *testing.T, conn *websocket.Conn) ConnectedPayload {
	t.Helper()

	var payload ConnectedPayload
	if err := json.Unmarshal(next(t, conn, string(MsgConnected)).Payload, &payload); err != nil {
		t.Fatalf("decode connected: %v", err)
	}
	return payload
}

func TestHandler_NewViewAndPing(t *testing.T) {
	ts, hub := newTestHandler(t)
	conn := dial(t, ts, "")

	payload := connected(t, conn)
	if payload.ViewID == "" || payload.ClientID == "" {
		t.Fatalf("connected payload = %+v", payload)
	}
	if len(payload.State.Reels) != 3 || payload.State.Reels[0].DisplayedWord != "A" {
		t.Errorf("initial reels = %+v", payload.State.Reels)
	}
	if hub.TableCount() != 1 {
		t.Errorf("views = %d, want 1", hub.TableCount())
	}

	send(t, conn, MsgPing, nil)
	next(t, conn, string(MsgPong))
}

func TestHandler_SubmitFlow(t *testing.T) {
	ts, _ := newTestHandler(t)
	conn := dial(t, ts, "")
	connected(t, conn)

	// Blank name is ignored without an error
	send(t, conn, MsgSubmit, nil)

	send(t, conn, MsgSetName, SetNamePayload{Name: "Alice"})
	next(t, conn, string(domain.EventStateUpdated))

	send(t, conn, MsgSubmit, nil)
	msg := next(t, conn, string(domain.EventSubmitted))

	var submitted domain.SubmittedPayload
	if err := json.Unmarshal(msg.Payload, &submitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if submitted.Record.Name != "Alice" || submitted.Record.A != "A" {
		t.Errorf("record = %+v", submitted.Record)
	}
	if submitted.State.Name != "" {
		t.Errorf("name after submit = %q", submitted.State.Name)
	}

	next(t, conn, string(domain.EventScrollToRecords))
}

func TestHandler_ResetWrongPasswordAlerts(t *testing.T) {
	ts, _ := newTestHandler(t)
	conn := dial(t, ts, "")
	connected(t, conn)

	send(t, conn, MsgReset, ResetPayload{Password: "0000"})
	msg := next(t, conn, string(domain.EventResetRejected))

	var alert domain.AlertPayload
	if err := json.Unmarshal(msg.Payload, &alert); err != nil || alert.Message == "" {
		t.Errorf("alert = %+v, %v", alert, err)
	}
}

func TestHandler_Reconnect(t *testing.T) {
	ts, hub := newTestHandler(t)

	first := dial(t, ts, "")
	viewID := connected(t, first).ViewID

	second := dial(t, ts, "viewId="+viewID)
	if got := connected(t, second).ViewID; got != viewID {
		t.Errorf("reconnected to %q, want %q", got, viewID)
	}
	if hub.TableCount() != 1 {
		t.Errorf("views = %d, want 1", hub.TableCount())
	}

	third := dial(t, ts, "viewId=expired")
	if got := connected(t, third).ViewID; got == "expired" || got == viewID {
		t.Errorf("unknown view id should open a new view, got %q", got)
	}
}

func TestHandler_InvalidMessages(t *testing.T) {
	ts, _ := newTestHandler(t)
	conn := dial(t, ts, "")
	connected(t, conn)

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{"},
		{"unknown type", `{"type":"dance"}`},
		{"unknown category", `{"type":"spin","payload":{"category":"Z"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)); err != nil {
				t.Fatalf("write: %v", err)
			}

			var payload ErrorPayload
			if err := json.Unmarshal(next(t, conn, string(MsgError)).Payload, &payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload.Code != ErrCodeInvalidMessage {
				t.Errorf("code = %q", payload.Code)
			}
		})
	}
}

func TestHandler_Origins(t *testing.T) {
	ts, hub := newTestHandlerWithOrigins(t, []string{"http://good.example"})
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"listed origin", "http://good.example", true},
		{"no origin header", "", true},
		{"other origin", "http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}

			before := hub.TableCount()
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tt.ok {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				defer conn.Close()
				connected(t, conn)
				return
			}

			if err == nil {
				conn.Close()
				t.Fatal("upgrade from a foreign origin should be refused")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %v, want 403", resp)
			}
			if hub.TableCount() != before {
				t.Error("refused upgrade should not open a view")
			}
		})
	}
}
