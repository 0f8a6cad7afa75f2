// Package room tracks running game servers and brokers access to them.
// A spawned process registers a room once it is reachable; lobbies bind to
// the room to learn its address and watch for its destruction.
package room

import "sync"

// Room is the registration record for one running game server.
type Room struct {
	ID         uint32
	TaskID     uint32
	Address    string
	Port       int
	Properties map[string]string

	mu        sync.Mutex
	destroyed bool
	watchers  map[int]func(*Room)
	nextWatch int
}

func (r *Room) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// OnDestroyed registers a handler fired exactly once when the room is torn
// down. Registering on an already-destroyed room still fires the handler,
// asynchronously, so callers may register while holding their own locks.
func (r *Room) OnDestroyed(h func(*Room)) int {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		go h(r)
		return -1
	}
	r.nextWatch++
	handle := r.nextWatch
	r.watchers[handle] = h
	r.mu.Unlock()
	return handle
}

func (r *Room) RemoveOnDestroyed(handle int) {
	r.mu.Lock()
	delete(r.watchers, handle)
	r.mu.Unlock()
}

func (r *Room) destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	handlers := make([]func(*Room), 0, len(r.watchers))
	for _, h := range r.watchers {
		handlers = append(handlers, h)
	}
	r.watchers = map[int]func(*Room){}
	r.mu.Unlock()

	for _, h := range handlers {
		h(r)
	}
}
