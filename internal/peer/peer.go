// Package peer wraps a single connected player socket. It owns the outbound
// write queue and the per-connection state that backends attach to a player,
// keeping the lower level connection details away from the lobby logic.
package peer

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Conn is the subset of *websocket.Conn the Peer needs, broken out so that
// tests can substitute an in-memory connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
	RemoteAddr() net.Addr
}

var nextPeerID uint64

// sendQueueSize bounds the number of undelivered outbound messages before
// the peer is considered too slow and messages start being dropped.
const sendQueueSize = 64

// Peer represents one player's connection to the server. All exported
// methods are safe for concurrent use.
type Peer struct {
	id     uint64
	conn   Conn
	logger *logrus.Logger

	send chan []byte

	mu         sync.Mutex
	username   string
	extension  interface{}
	closed     bool
	onClosed   map[int]func(*Peer)
	nextHandle int
}

// New wraps conn in a Peer and starts its writer goroutine. The returned
// Peer owns the connection and is responsible for closing it.
func New(conn Conn, logger *logrus.Logger) *Peer {
	p := &Peer{
		id:       atomic.AddUint64(&nextPeerID, 1),
		conn:     conn,
		logger:   logger,
		send:     make(chan []byte, sendQueueSize),
		onClosed: make(map[int]func(*Peer)),
	}
	go p.writeLoop()
	return p
}

func (p *Peer) ID() uint64 { return p.id }

func (p *Peer) RemoteAddr() string {
	if addr := p.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Username returns the name the peer identified itself with, or "" if it
// has not sent a hello yet.
func (p *Peer) Username() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.username
}

func (p *Peer) SetUsername(name string) {
	p.mu.Lock()
	p.username = name
	p.mu.Unlock()
}

// Extension returns the backend-specific state record attached to this peer,
// if any. Backends are expected to attach exactly one extension type.
func (p *Peer) Extension() interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.extension
}

func (p *Peer) SetExtension(ext interface{}) {
	p.mu.Lock()
	p.extension = ext
	p.mu.Unlock()
}

// Send marshals v and queues it for delivery. It never blocks: if the peer's
// queue is full the message is dropped and logged, since a stalled client
// must not be able to stall a lobby broadcast.
func (p *Peer) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling message for peer %d: %w", p.id, err)
	}

	// The enqueue happens under the lock so Close cannot shut the channel
	// between the closed check and the send.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}

	select {
	case p.send <- data:
	default:
		p.logger.Warnf("dropping message to slow peer %d (%s)", p.id, p.RemoteAddr())
	}
	return nil
}

func (p *Peer) writeLoop() {
	for data := range p.send {
		if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			p.logger.Debugf("write to peer %d failed: %v", p.id, err)
			return
		}
	}
}

// OnClosed registers a handler invoked exactly once when the peer's
// connection goes away. The returned handle can be passed to RemoveOnClosed.
// A handler registered after the peer has already closed fires immediately.
func (p *Peer) OnClosed(h func(*Peer)) int {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		h(p)
		return -1
	}
	p.nextHandle++
	handle := p.nextHandle
	p.onClosed[handle] = h
	p.mu.Unlock()
	return handle
}

func (p *Peer) RemoveOnClosed(handle int) {
	p.mu.Lock()
	delete(p.onClosed, handle)
	p.mu.Unlock()
}

// Close tears down the connection and fires the closed handlers. It is
// idempotent; only the first call has any effect.
func (p *Peer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	handlers := make([]func(*Peer), 0, len(p.onClosed))
	for _, h := range p.onClosed {
		handlers = append(handlers, h)
	}
	p.onClosed = map[int]func(*Peer){}
	p.mu.Unlock()

	close(p.send)
	_ = p.conn.Close()

	for _, h := range handlers {
		h(p)
	}
}
