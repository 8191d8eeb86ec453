package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/russellballestrini/tpmjs-sub004/internal/errors"
)

// Connection status values.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// DeclaredTool is a tool a poller announced in its heartbeat.
//
// Declarations are informational. The catalog remains the routing
// authority for which bridge tools a collection exposes.
type DeclaredTool struct {
	ServerID string `json:"serverId"`
	ToolName string `json:"toolName"`
}

// Connection is the liveness record for one bridge user.
type Connection struct {
	UserID        string
	Status        string
	LastSeen      time.Time
	DeclaredTools []DeclaredTool
}

// ConnectionStore is the read side used when routing calls.
type ConnectionStore interface {
	// Connection returns the record for a bridge user.
	//
	// Returns ErrConnectionNotFound when the user has never connected.
	Connection(ctx context.Context, userID string) (*Connection, error)
}

// ConnectionWriter is the write side driven by the poller API.
type ConnectionWriter interface {
	// Heartbeat marks the user connected and refreshes LastSeen,
	// creating the record on first contact.
	Heartbeat(userID string, tools []DeclaredTool) Connection

	// Disconnect marks the user disconnected. Returns false when no
	// record exists; none is created.
	Disconnect(userID string) bool
}

// MemoryConnectionStore tracks bridge connections in process memory.
//
// Records survive disconnects so that staleness and status can be
// reported separately, but they do not survive restarts.
type MemoryConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// Compile-time interface checks.
var (
	_ ConnectionStore  = (*MemoryConnectionStore)(nil)
	_ ConnectionWriter = (*MemoryConnectionStore)(nil)
)

// NewMemoryConnectionStore creates an empty connection store.
func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{
		conns: make(map[string]*Connection, 10),
	}
}

// Heartbeat marks the user connected and stamps LastSeen with the current
// time. A nil tools slice keeps the previous declarations so pollers can
// send lightweight keepalives.
func (s *MemoryConnectionStore) Heartbeat(userID string, tools []DeclaredTool) Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[userID]
	if !ok {
		conn = &Connection{UserID: userID}
		s.conns[userID] = conn
	}

	conn.Status = StatusConnected
	conn.LastSeen = time.Now()

	if tools != nil {
		conn.DeclaredTools = tools
	}

	return *conn
}

// Disconnect marks the user disconnected without touching LastSeen.
func (s *MemoryConnectionStore) Disconnect(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[userID]
	if !ok {
		return false
	}

	conn.Status = StatusDisconnected

	return true
}

// Connection returns a copy of the user's record.
func (s *MemoryConnectionStore) Connection(_ context.Context, userID string) (*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.conns[userID]
	if !ok {
		return nil, errors.ErrConnectionNotFound
	}

	c := *conn

	return &c, nil
}

// Set replaces a record wholesale. Intended for seeding tests.
func (s *MemoryConnectionStore) Set(conn Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := conn
	s.conns[conn.UserID] = &c
}
