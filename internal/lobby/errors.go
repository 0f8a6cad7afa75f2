package lobby

import (
	"fmt"
	"sync"

	"github.com/arcadianet/arcadia/internal/peer"
	"github.com/arcadianet/arcadia/internal/protocol"
)

// Error is a request rejection. Status selects the wire-level failure class
// and Reason carries the human-readable explanation. Rejections are always
// complete no-ops on lobby state.
type Error struct {
	Status string
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func failf(format string, args ...interface{}) *Error {
	return &Error{Status: protocol.StatusFailed, Reason: fmt.Sprintf(format, args...)}
}

func unauthorizedf(format string, args ...interface{}) *Error {
	return &Error{Status: protocol.StatusUnauthorized, Reason: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...interface{}) *Error {
	return &Error{Status: protocol.StatusNotFound, Reason: fmt.Sprintf(format, args...)}
}

// peerState is the per-connection record tracking which lobby a peer is in.
// One active membership per peer at a time.
type peerState struct {
	mu      sync.Mutex
	current *Lobby
}

var peerStateMu sync.Mutex

// stateFor returns the peer's lobby state record, creating it on first use.
func stateFor(p *peer.Peer) *peerState {
	peerStateMu.Lock()
	defer peerStateMu.Unlock()

	if ps, ok := p.Extension().(*peerState); ok {
		return ps
	}
	ps := &peerState{}
	p.SetExtension(ps)
	return ps
}

// claim marks l as the peer's current lobby if it has none. Returns false
// when the peer already occupies a lobby.
func (ps *peerState) claim(l *Lobby) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.current != nil {
		return false
	}
	ps.current = l
	return true
}

// release clears the association if it still points at l.
func (ps *peerState) release(l *Lobby) {
	ps.mu.Lock()
	if ps.current == l {
		ps.current = nil
	}
	ps.mu.Unlock()
}

func (ps *peerState) lobby() *Lobby {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.current
}
