// Package stream pushes session state to clients over WebSocket. Every
// mutation of a session (send settle, clear, panel toggle) is broadcast to
// all of that user's connected tabs.
package stream

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Manager tracks active WebSocket connections per user and tab.
type Manager struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewManager creates a new connection manager.
func NewManager() *Manager {
	return &Manager{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Register adds a new WebSocket connection for a user/tab.
func (m *Manager) Register(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := m.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}

	m.active[userID][sessionID] = conn
	slog.Info("State stream registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes a WebSocket connection for a user/tab.
func (m *Manager) Unregister(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
			slog.Info("State stream unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// Connections returns a snapshot of the active connections for a user.
func (m *Manager) Connections(userID string) []*websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions, ok := m.active[userID]
	if !ok {
		return nil
	}
	conns := make([]*websocket.Conn, 0, len(sessions))
	for _, conn := range sessions {
		conns = append(conns, conn)
	}
	return conns
}

// CloseAll forcefully terminates all active connections for a user.
func (m *Manager) CloseAll(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[userID]
	if !ok {
		return
	}

	for sid, conn := range sessions {
		_ = conn.Close(websocket.StatusNormalClosure, "stream closed")
		slog.Info("State stream closed", "user_id", userID, "session_id", sid)
	}
	delete(m.active, userID)
}
