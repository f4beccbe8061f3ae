package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/techaid-za/voicedesk/messages"
	"github.com/techaid-za/voicedesk/observability"
	"github.com/techaid-za/voicedesk/visualizer"
)

// DeviceFactory opens the local audio endpoints for a new session.
// onVisual receives orb animation frames for the UI shell.
type DeviceFactory func(onVisual func(visualizer.Frame)) (Devices, error)

// ManagerConfig carries the shared collaborators every session uses.
type ManagerConfig struct {
	Dial           RemoteDialer
	Store          Store
	Metrics        *observability.Metrics
	NewDevices     DeviceFactory
	WhatsAppNumber string
	SystemPrompt   string
	MaxSessions    int
	SessionTimeout time.Duration
}

// Manager tracks all live sessions. The daemon owns one microphone and
// one speaker, so MaxSessions is normally 1.
type Manager struct {
	cfg      ManagerConfig
	sessions map[string]*Controller
	mu       sync.RWMutex
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 30 * time.Minute
	}
	if cfg.Store == nil {
		cfg.Store = noopStore{}
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Controller),
	}
}

// CreateSession allocates a session and its audio devices. emit is the
// per-connection write queue; visual frames are routed to it directly.
func (m *Manager) CreateSession(ctx context.Context, emit func(msg *messages.ServerMessage)) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.cfg.MaxSessions {
		return nil, fmt.Errorf("maximum sessions reached (%d)", m.cfg.MaxSessions)
	}

	sessionID := uuid.New().String()

	devices, err := m.cfg.NewDevices(func(f visualizer.Frame) {
		emit(messages.NewVisualMessage(sessionID, f))
	})
	if err != nil {
		return nil, fmt.Errorf("open audio devices: %w", err)
	}

	ctrl := NewController(Config{
		ID:             sessionID,
		Dial:           m.cfg.Dial,
		Devices:        devices,
		Store:          m.cfg.Store,
		Metrics:        m.cfg.Metrics,
		WhatsAppNumber: m.cfg.WhatsAppNumber,
		SystemPrompt:   m.cfg.SystemPrompt,
		Emit:           emit,
	})

	m.sessions[sessionID] = ctrl
	m.cfg.Store.TrackSession(ctx, sessionID, m.cfg.SessionTimeout)

	return ctrl, nil
}

// GetSession retrieves a session by ID.
func (m *Manager) GetSession(sessionID string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ctrl, exists := m.sessions[sessionID]
	return ctrl, exists
}

// RemoveSession closes and forgets a session.
func (m *Manager) RemoveSession(sessionID string) {
	m.mu.Lock()
	ctrl, exists := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if exists {
		ctrl.Close()
	}
}

// ActiveSessionCount returns the current session count.
func (m *Manager) ActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupInactiveSessions closes sessions with no recent traffic.
func (m *Manager) CleanupInactiveSessions() {
	m.mu.Lock()
	var expired []*Controller
	now := time.Now()
	for id, ctrl := range m.sessions {
		if now.Sub(ctrl.LastActivity()) > m.cfg.SessionTimeout {
			expired = append(expired, ctrl)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, ctrl := range expired {
		ctrl.Close()
	}
}

// StartCleanupRoutine runs periodic cleanup until ctx is cancelled.
func (m *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupInactiveSessions()
		}
	}
}

// Shutdown closes all sessions and the store.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ctrls := make([]*Controller, 0, len(m.sessions))
	for id, ctrl := range m.sessions {
		ctrls = append(ctrls, ctrl)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, ctrl := range ctrls {
		ctrl.Close()
	}
	m.cfg.Store.Close()
}
