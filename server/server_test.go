package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/techaid-za/voicedesk/audio"
	"github.com/techaid-za/voicedesk/config"
	"github.com/techaid-za/voicedesk/messages"
	"github.com/techaid-za/voicedesk/session"
	"github.com/techaid-za/voicedesk/tools"
	"github.com/techaid-za/voicedesk/visualizer"
)

type stubRemote struct{}

func (stubRemote) SendAudioFrame([]byte) error          { return nil }
func (stubRemote) SendSystemText(string) error          { return nil }
func (stubRemote) SendToolResults([]tools.Result) error { return nil }
func (stubRemote) Close() error                         { return nil }

type stubCapture struct{ muted bool }

func (c *stubCapture) Start(func(audio.Frame)) error { return nil }
func (c *stubCapture) SetMuted(m bool)               { c.muted = m }
func (c *stubCapture) Muted() bool                   { return c.muted }
func (c *stubCapture) Stop()                         {}

type stubPlayback struct{}

func (stubPlayback) Enqueue(audio.Buffer) {}
func (stubPlayback) Interrupt()           {}
func (stubPlayback) Close() error         { return nil }

type stubVisual struct{}

func (stubVisual) Start() {}
func (stubVisual) Stop()  {}

func testServer(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()
	return testServerWithConfig(t, &config.Config{
		Port:           0,
		AllowedOrigins: []string{"*"},
	})
}

func testServerWithConfig(t *testing.T, cfg *config.Config) (*httptest.Server, *session.Manager) {
	t.Helper()

	manager := session.NewManager(session.ManagerConfig{
		Dial: func(ctx context.Context, prompt string, h session.RemoteHandlers) (session.RemoteChannel, error) {
			return stubRemote{}, nil
		},
		NewDevices: func(onVisual func(visualizer.Frame)) (session.Devices, error) {
			return session.Devices{
				Capture:  &stubCapture{},
				Playback: stubPlayback{},
				Visual:   stubVisual{},
			}, nil
		},
		WhatsAppNumber: "27215550100",
		MaxSessions:    1,
	})

	srv := New(cfg, manager)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		manager.Shutdown()
	})
	return ts, manager
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed waiting for %q: %v", msgType, err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad server message: %v", err)
		}
		if msg["type"] == msgType {
			return msg
		}
	}
	t.Fatalf("never received %q", msgType)
	return nil
}

func send(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestOpenReportsStatusTransitions(t *testing.T) {
	ts, _ := testServer(t)
	conn := dialWS(t, ts)

	send(t, conn, `{"type":"open","payload":{"context":"pricing"}}`)

	first := readUntil(t, conn, messages.TypeStatus)
	payload := first["payload"].(map[string]any)
	if payload["status"] != "connecting" {
		t.Fatalf("expected connecting first, got %v", payload["status"])
	}

	second := readUntil(t, conn, messages.TypeStatus)
	payload = second["payload"].(map[string]any)
	if payload["status"] != "connected" {
		t.Fatalf("expected connected, got %v", payload["status"])
	}
	if second["sessionId"] == "" {
		t.Error("expected a session id")
	}
}

func TestSecondOpenRejected(t *testing.T) {
	ts, _ := testServer(t)
	conn := dialWS(t, ts)

	send(t, conn, `{"type":"open"}`)
	readUntil(t, conn, messages.TypeStatus)
	readUntil(t, conn, messages.TypeStatus)

	send(t, conn, `{"type":"open"}`)
	errMsg := readUntil(t, conn, messages.TypeError)
	payload := errMsg["payload"].(map[string]any)
	if payload["code"] != messages.ErrCodeInvalidMessage {
		t.Errorf("expected %s, got %v", messages.ErrCodeInvalidMessage, payload["code"])
	}
}

func TestPingPong(t *testing.T) {
	ts, _ := testServer(t)
	conn := dialWS(t, ts)

	send(t, conn, `{"type":"ping"}`)
	readUntil(t, conn, messages.TypePong)
}

func TestMalformedMessageAnswered(t *testing.T) {
	ts, _ := testServer(t)
	conn := dialWS(t, ts)

	send(t, conn, `{not json`)
	errMsg := readUntil(t, conn, messages.TypeError)
	payload := errMsg["payload"].(map[string]any)
	if payload["code"] != messages.ErrCodeInvalidMessage {
		t.Errorf("expected %s, got %v", messages.ErrCodeInvalidMessage, payload["code"])
	}
}

func TestSetMutedWithoutSessionRejected(t *testing.T) {
	ts, _ := testServer(t)
	conn := dialWS(t, ts)

	send(t, conn, `{"type":"set_muted","payload":{"muted":true}}`)
	readUntil(t, conn, messages.TypeError)
}

func TestDisconnectRemovesSession(t *testing.T) {
	ts, manager := testServer(t)
	conn := dialWS(t, ts)

	send(t, conn, `{"type":"open"}`)
	readUntil(t, conn, messages.TypeStatus)
	readUntil(t, conn, messages.TypeStatus)

	if manager.ActiveSessionCount() != 1 {
		t.Fatalf("expected 1 session, got %d", manager.ActiveSessionCount())
	}

	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for manager.ActiveSessionCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if manager.ActiveSessionCount() != 0 {
		t.Error("session should be removed after disconnect")
	}
}

func TestKeepAlivePings(t *testing.T) {
	ts, _ := testServerWithConfig(t, &config.Config{
		Port:            0,
		AllowedOrigins:  []string{"*"},
		KeepAlivePeriod: 20 * time.Millisecond,
	})
	conn := dialWS(t, ts)

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	// Control frames are only processed while reading.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no keepalive ping received")
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("bad health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}
