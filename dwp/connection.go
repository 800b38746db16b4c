package dwp

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Connection represents an authenticated WebSocket session.
type Connection struct {
	ID          string
	Identity    *Identity
	Codec       Codec
	ConnectedAt time.Time

	lastActivity atomic.Int64
	transport    io.Closer
}

// NewConnection creates a connection with the given ID and identity.
func NewConnection(connID string, identity *Identity, codec Codec) *Connection {
	now := time.Now().UTC()
	c := &Connection{
		ID:          connID,
		Identity:    identity,
		Codec:       codec,
		ConnectedAt: now,
	}
	c.lastActivity.Store(now.UnixNano())
	return c
}

// Touch updates the last activity timestamp.
func (c *Connection) Touch() {
	c.lastActivity.Store(time.Now().UTC().UnixNano())
}

// Close tears down the underlying transport. Sessions served over HTTP RPC
// have none and Close is a no-op.
func (c *Connection) Close() error {
	if c.transport == nil {
		return nil
	}
	return c.transport.Close()
}

// LastActivity returns when the last frame was received.
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load()).UTC()
}

// ConnectionManager tracks active sessions.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewConnectionManager creates an empty connection manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{conns: make(map[string]*Connection)}
}

// Add registers a new connection.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.conns[conn.ID] = conn
	cm.mu.Unlock()
}

// Remove unregisters a connection.
func (cm *ConnectionManager) Remove(connID string) {
	cm.mu.Lock()
	delete(cm.conns, connID)
	cm.mu.Unlock()
}

// Get returns a connection by ID.
func (cm *ConnectionManager) Get(connID string) (*Connection, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	c, ok := cm.conns[connID]
	return c, ok
}

// Count returns the number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

// CloseAll closes every registered session and returns how many there
// were. Sessions unregister themselves once their read loop exits.
func (cm *ConnectionManager) CloseAll() int {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.conns))
	for _, c := range cm.conns {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}
