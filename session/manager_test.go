package session

import (
	"context"
	"testing"

	"github.com/techaid-za/voicedesk/messages"
	"github.com/techaid-za/voicedesk/visualizer"
)

func testManager(maxSessions int) *Manager {
	return NewManager(ManagerConfig{
		Dial: func(ctx context.Context, prompt string, h RemoteHandlers) (RemoteChannel, error) {
			return &fakeRemote{}, nil
		},
		NewDevices: func(onVisual func(visualizer.Frame)) (Devices, error) {
			return Devices{
				Capture:  &fakeCapture{},
				Playback: &fakePlayback{},
				Visual:   &fakeVisual{},
			}, nil
		},
		WhatsAppNumber: "27215550100",
		MaxSessions:    maxSessions,
	})
}

func discard(*messages.ServerMessage) {}

func TestManagerEnforcesSessionCap(t *testing.T) {
	m := testManager(1)
	defer m.Shutdown()

	first, err := m.CreateSession(context.Background(), discard)
	if err != nil {
		t.Fatalf("first CreateSession failed: %v", err)
	}
	if first.ID() == "" {
		t.Error("expected a session id")
	}

	if _, err := m.CreateSession(context.Background(), discard); err == nil {
		t.Fatal("expected second CreateSession to fail at cap 1")
	}

	m.RemoveSession(first.ID())
	if _, err := m.CreateSession(context.Background(), discard); err != nil {
		t.Fatalf("CreateSession after removal failed: %v", err)
	}
}

func TestManagerGetAndRemove(t *testing.T) {
	m := testManager(2)
	defer m.Shutdown()

	ctrl, err := m.CreateSession(context.Background(), discard)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, ok := m.GetSession(ctrl.ID())
	if !ok || got != ctrl {
		t.Fatal("GetSession should return the created controller")
	}

	m.RemoveSession(ctrl.ID())
	if _, ok := m.GetSession(ctrl.ID()); ok {
		t.Error("session should be gone after RemoveSession")
	}
	if m.ActiveSessionCount() != 0 {
		t.Errorf("expected 0 active sessions, got %d", m.ActiveSessionCount())
	}
}

func TestManagerShutdownClosesAll(t *testing.T) {
	m := testManager(2)

	a, err := m.CreateSession(context.Background(), discard)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	b, err := m.CreateSession(context.Background(), discard)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	m.Shutdown()

	if m.ActiveSessionCount() != 0 {
		t.Errorf("expected 0 sessions after shutdown, got %d", m.ActiveSessionCount())
	}
	for _, ctrl := range []*Controller{a, b} {
		if got := ctrl.State(); got != StateDisconnected {
			t.Errorf("expected %s after shutdown, got %s", StateDisconnected, got)
		}
	}
}
