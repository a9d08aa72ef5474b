package stream

import (
	"strconv"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestManager_Register(t *testing.T) {
	m := NewManager()
	conn := &websocket.Conn{}
	userID := "anon_a"
	sessionID := "tab-1"

	m.Register(userID, sessionID, conn)

	conns := m.Connections(userID)
	if len(conns) != 1 || conns[0] != conn {
		t.Errorf("Expected [%v], got %v", conn, conns)
	}
}

func TestManager_Unregister(t *testing.T) {
	m := NewManager()
	conn := &websocket.Conn{}
	userID := "anon_a"
	sessionID := "tab-1"

	m.Register(userID, sessionID, conn)
	m.Unregister(userID, sessionID, conn)

	if conns := m.Connections(userID); conns != nil {
		t.Errorf("Expected no connections, got %v", conns)
	}
}

func TestManager_UnregisterStale(t *testing.T) {
	m := NewManager()
	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}
	userID := "anon_a"

	m.Register(userID, "tab-1", conn1)

	// The other tab stays active when one unregisters.
	m.Register(userID, "tab-2", conn2)

	m.Unregister(userID, "tab-1", conn1)

	conns := m.Connections(userID)
	if len(conns) != 1 || conns[0] != conn2 {
		t.Errorf("Expected [%v], got %v", conn2, conns)
	}
}

func TestManager_UnregisterIgnoresForeignConn(t *testing.T) {
	m := NewManager()
	current := &websocket.Conn{}
	stale := &websocket.Conn{}
	userID := "anon_a"
	sessionID := "tab-1"

	m.Register(userID, sessionID, current)

	// A late unregister from a replaced connection must not evict the
	// current one.
	m.Unregister(userID, sessionID, stale)

	conns := m.Connections(userID)
	if len(conns) != 1 || conns[0] != current {
		t.Errorf("Expected [%v], got %v", current, conns)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager()
	userID := "anon_concurrent"

	go func() {
		for i := 0; i < 1000; i++ {
			m.Register(userID, "tab-"+strconv.Itoa(i), &websocket.Conn{})
		}
	}()

	go func() {
		for i := 0; i < 1000; i++ {
			m.Connections(userID)
		}
	}()

	time.Sleep(100 * time.Millisecond)
}
