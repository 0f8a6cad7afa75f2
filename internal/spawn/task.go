// Package spawn tracks requests to provision dedicated game server
// processes. A Task is the handle shared between the lobby that requested
// the server (consumer of status updates) and the spawner worker fulfilling
// it (producer of status updates).
package spawn

import "sync"

// Status is the progress marker of a spawn task. Values form three zones:
// anything below StatusNone is a terminal failure, StatusNone means no
// activity yet, values above StatusNone are provisioning milestones, and
// StatusFinalized is the terminal success carrying the finalization payload.
type Status int

const (
	StatusAborted Status = -2
	StatusFailed  Status = -1
	StatusNone    Status = 0
	// StatusStarting means a spawner accepted the order and is launching
	// the process.
	StatusStarting Status = 1
	// StatusProcessUp means the spawned process came up and checked in.
	StatusProcessUp Status = 2
	// StatusFinalized means the spawned process finished registering and
	// reported its completion payload.
	StatusFinalized Status = 3
)

func (s Status) IsFailure() bool   { return s < StatusNone }
func (s Status) IsFinalized() bool { return s == StatusFinalized }
func (s Status) IsActive() bool    { return s > StatusNone }
func (s Status) IsTerminal() bool  { return s.IsFailure() || s.IsFinalized() }

func (s Status) String() string {
	switch s {
	case StatusAborted:
		return "aborted"
	case StatusFailed:
		return "failed"
	case StatusNone:
		return "none"
	case StatusStarting:
		return "starting"
	case StatusProcessUp:
		return "process_up"
	case StatusFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// StatusHandler receives task status transitions. Delivery is not
// synchronized with subscription changes, so handlers must tolerate a
// callback arriving after they consider the task settled.
type StatusHandler func(t *Task, status Status)

// Task is one outstanding provisioning request. Both the owning lobby and
// the spawner subsystem hold a reference to it for its lifetime; once the
// status reaches a terminal value the task never changes again.
type Task struct {
	ID         uint32
	Region     string
	Properties map[string]string
	Options    map[string]string

	mu           sync.Mutex
	status       Status
	finalization map[string]string
	watchers     map[int]StatusHandler
	nextWatch    int
	abort        func(*Task)
	aborting     bool
}

func newTask(id uint32, region string, properties, options map[string]string, abort func(*Task)) *Task {
	return &Task{
		ID:         id,
		Region:     region,
		Properties: properties,
		Options:    options,
		watchers:   map[int]StatusHandler{},
		abort:      abort,
	}
}

func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Finalization returns the completion payload reported by the spawned
// process, or nil if the task has not finalized.
func (t *Task) Finalization() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finalization
}

// Subscribe registers a status handler and returns a handle for
// Unsubscribe. Handlers fire once per transition, in subscription order
// only by accident; no ordering between handlers is guaranteed.
func (t *Task) Subscribe(h StatusHandler) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextWatch++
	t.watchers[t.nextWatch] = h
	return t.nextWatch
}

func (t *Task) Unsubscribe(handle int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.watchers, handle)
}

// SetStatus advances the task to status and notifies subscribers. Calls on
// an already-terminal task, or that do not change the status, are dropped.
func (t *Task) SetStatus(status Status) {
	t.mu.Lock()
	if t.status.IsTerminal() || status == t.status {
		t.mu.Unlock()
		return
	}
	t.status = status
	handlers := make([]StatusHandler, 0, len(t.watchers))
	for _, h := range t.watchers {
		handlers = append(handlers, h)
	}
	t.mu.Unlock()

	for _, h := range handlers {
		h(t, status)
	}
}

// Finalize records the completion payload from the spawned process and
// moves the task to StatusFinalized. The payload lands before the status
// transition so subscribers observe it from their callback.
func (t *Task) Finalize(payload map[string]string) {
	t.mu.Lock()
	if t.status.IsTerminal() {
		t.mu.Unlock()
		return
	}
	t.finalization = payload
	t.mu.Unlock()

	t.SetStatus(StatusFinalized)
}

// Abort requests cancellation of a non-terminal task. Aborting a terminal
// task is a no-op, and the abort hook runs at most once no matter how many
// callers race here.
func (t *Task) Abort() {
	t.mu.Lock()
	if t.status.IsTerminal() || t.aborting {
		t.mu.Unlock()
		return
	}
	t.aborting = true
	abort := t.abort
	t.mu.Unlock()

	if abort != nil {
		abort(t)
	}
	t.SetStatus(StatusAborted)
}
