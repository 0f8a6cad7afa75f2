package spawn

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Service is the interface lobbies use to request a game server. A nil
// task means no spawner currently has capacity for the request.
type Service interface {
	SubmitSpawnRequest(properties map[string]string, region string, options map[string]string) *Task
}

// Spawner is one registered worker capable of launching game server
// processes. Start is invoked with the task when an order is dispatched;
// Abort (optional) is invoked when a lobby cancels an in-flight task.
type Spawner struct {
	ID       string
	Region   string
	MaxTasks int
	Start    func(*Task) error
	Abort    func(*Task)
}

// Pool tracks registered spawners and routes spawn requests to the least
// loaded worker whose region matches the request.
type Pool struct {
	Logger *logrus.Logger

	mu       sync.Mutex
	spawners []*spawnerState
	tasks    map[uint32]*Task
	nextID   uint32
}

type spawnerState struct {
	spawner *Spawner
	active  int
}

func NewPool(logger *logrus.Logger) *Pool {
	return &Pool{
		Logger: logger,
		tasks:  map[uint32]*Task{},
	}
}

// RegisterSpawner adds a worker to the pool. Spawners are never removed;
// a worker that goes away should fail its orders instead.
func (p *Pool) RegisterSpawner(s *Spawner) {
	p.mu.Lock()
	p.spawners = append(p.spawners, &spawnerState{spawner: s})
	p.mu.Unlock()

	p.Logger.Infof("[SPAWN] registered spawner %s (region=%q capacity=%d)", s.ID, s.Region, s.MaxTasks)
}

// SubmitSpawnRequest picks a spawner for the request, creates a task, and
// dispatches the start order. An empty region on the request matches any
// spawner; a non-empty region must match the spawner's exactly. Returns nil
// when every eligible spawner is at capacity.
func (p *Pool) SubmitSpawnRequest(properties map[string]string, region string, options map[string]string) *Task {
	p.mu.Lock()
	chosen := p.pickSpawner(region)
	if chosen == nil {
		p.mu.Unlock()
		p.Logger.Warnf("[SPAWN] no spawner available for region %q", region)
		return nil
	}

	p.nextID++
	task := newTask(p.nextID, region, properties, options, func(t *Task) {
		p.releaseTask(chosen, t)
		if chosen.spawner.Abort != nil {
			chosen.spawner.Abort(t)
		}
	})
	p.tasks[task.ID] = task
	chosen.active++
	p.mu.Unlock()

	p.Logger.Infof("[SPAWN] dispatching task %d to spawner %s", task.ID, chosen.spawner.ID)

	// The release watcher must be in place before the start order goes out:
	// a worker may settle the task synchronously from inside Start.
	task.Subscribe(func(t *Task, status Status) {
		if status.IsTerminal() {
			p.releaseTask(chosen, t)
		}
	})
	task.SetStatus(StatusStarting)

	if err := chosen.spawner.Start(task); err != nil {
		p.Logger.Errorf("[SPAWN] spawner %s failed to start task %d: %v", chosen.spawner.ID, task.ID, err)
		task.SetStatus(StatusFailed)
		return task
	}
	return task
}

// pickSpawner returns the least loaded spawner with free capacity matching
// region, or nil. Caller holds p.mu.
func (p *Pool) pickSpawner(region string) *spawnerState {
	var best *spawnerState
	for _, s := range p.spawners {
		if s.active >= s.spawner.MaxTasks {
			continue
		}
		if region != "" && s.spawner.Region != region {
			continue
		}
		if best == nil || s.active < best.active {
			best = s
		}
	}
	return best
}

func (p *Pool) releaseTask(s *spawnerState, t *Task) {
	p.mu.Lock()
	if _, ok := p.tasks[t.ID]; ok {
		delete(p.tasks, t.ID)
		if s.active > 0 {
			s.active--
		}
	}
	p.mu.Unlock()
}

// Task looks up an in-flight task by id. Terminal tasks are dropped from
// the table once their spawner slot is released.
func (p *Pool) Task(id uint32) *Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tasks[id]
}

// FinalizeTask is the completion handshake used by a spawned process to
// report its registration payload back through the server. Transport-level
// problems (an unknown or already-settled task) are logged rather than
// surfaced, but the finalization callback still runs for live tasks.
func (p *Pool) FinalizeTask(id uint32, payload map[string]string) {
	task := p.Task(id)
	if task == nil {
		p.Logger.Warnf("[SPAWN] finalize for unknown task %d dropped", id)
		return
	}
	if task.Status().IsTerminal() {
		p.Logger.Warnf("[SPAWN] finalize for settled task %d dropped", id)
		return
	}
	task.Finalize(payload)
}
