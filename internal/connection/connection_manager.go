// Package connection keeps the registry of accepted subscriber sockets and
// their outbound queues.
package connection

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
)

const DefaultQueueSize = 64

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrQueueFull         = errors.New("send queue full")
)

// Connection is one subscriber socket. Outbound messages are queued and
// drained by the socket's write loop.
type Connection struct {
	ID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Outbound is drained by the write loop until Done is closed.
func (c *Connection) Outbound() <-chan []byte {
	return c.send
}

func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Enqueue never blocks. The send channel itself is never closed so a
// concurrent Close cannot make it panic.
func (c *Connection) Enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Manager hands out connection ids and routes sends to their queues.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	queueSize   int
}

func NewManager(queueSize int) *Manager {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Manager{
		connections: make(map[string]*Connection),
		queueSize:   queueSize,
	}
}

// Open registers a new connection under a fresh uuid.
func (m *Manager) Open() *Connection {
	conn := &Connection{
		ID:   uuid.NewString(),
		send: make(chan []byte, m.queueSize),
		done: make(chan struct{}),
	}
	m.mu.Lock()
	m.connections[conn.ID] = conn
	m.mu.Unlock()
	logger.InfoF("[%s] Subscriber connected", conn.ID)
	return conn
}

func (m *Manager) Get(id string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[id]
	return conn, ok
}

// Remove closes the connection's queue and forgets it. Removing an unknown
// id is a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	conn, ok := m.connections[id]
	delete(m.connections, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	conn.Close()
	logger.InfoF("[%s] Subscriber disconnected", id)
}

func (m *Manager) Send(id string, data []byte) error {
	conn, ok := m.Get(id)
	if !ok {
		return ErrUnknownConnection
	}
	return conn.Enqueue(data)
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}
