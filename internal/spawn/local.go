package spawn

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// LocalSpawner launches game server processes on the host the lobby server
// itself runs on. Each launched process receives its task id and a port
// carved out of the spawner's range and is expected to finalize the task
// through the server's HTTP handshake once it has registered its room.
type LocalSpawner struct {
	ID      string
	Region  string
	Command string
	Args    []string
	// BasePort is the first port handed to spawned processes; task n gets
	// BasePort+slot where slot < MaxTasks.
	BasePort int
	MaxTasks int
	Logger   *logrus.Logger

	ctx context.Context

	mu    sync.Mutex
	procs map[uint32]*exec.Cmd
	inUse map[int]bool
}

func NewLocalSpawner(ctx context.Context, id, region, command string, args []string, basePort, maxTasks int, logger *logrus.Logger) *LocalSpawner {
	return &LocalSpawner{
		ID:       id,
		Region:   region,
		Command:  command,
		Args:     args,
		BasePort: basePort,
		MaxTasks: maxTasks,
		Logger:   logger,
		ctx:      ctx,
		procs:    map[uint32]*exec.Cmd{},
		inUse:    map[int]bool{},
	}
}

// Spawner returns the pool registration for this worker.
func (l *LocalSpawner) Spawner() *Spawner {
	return &Spawner{
		ID:       l.ID,
		Region:   l.Region,
		MaxTasks: l.MaxTasks,
		Start:    l.start,
		Abort:    l.abort,
	}
}

func (l *LocalSpawner) start(t *Task) error {
	port, err := l.claimPort()
	if err != nil {
		return err
	}

	args := append([]string{}, l.Args...)
	args = append(args,
		"-task-id", strconv.FormatUint(uint64(t.ID), 10),
		"-port", strconv.Itoa(port),
	)
	cmd := exec.CommandContext(l.ctx, l.Command, args...)
	if err := cmd.Start(); err != nil {
		l.releasePort(port)
		return fmt.Errorf("starting game server process: %w", err)
	}

	l.mu.Lock()
	l.procs[t.ID] = cmd
	l.mu.Unlock()

	l.Logger.Infof("[SPAWN] %s launched pid %d for task %d on port %d", l.ID, cmd.Process.Pid, t.ID, port)
	t.SetStatus(StatusProcessUp)

	go func() {
		err := cmd.Wait()
		l.releasePort(port)

		l.mu.Lock()
		delete(l.procs, t.ID)
		l.mu.Unlock()

		// A process exiting before finalization means the server never
		// came up; after finalization the exit is the normal end of match.
		if !t.Status().IsTerminal() {
			l.Logger.Warnf("[SPAWN] process for task %d exited early: %v", t.ID, err)
			t.SetStatus(StatusFailed)
		}
	}()
	return nil
}

func (l *LocalSpawner) abort(t *Task) {
	l.mu.Lock()
	cmd := l.procs[t.ID]
	l.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			l.Logger.Warnf("[SPAWN] killing process for task %d: %v", t.ID, err)
		}
	}
}

func (l *LocalSpawner) claimPort() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for slot := 0; slot < l.MaxTasks; slot++ {
		if !l.inUse[slot] {
			l.inUse[slot] = true
			return l.BasePort + slot, nil
		}
	}
	return 0, fmt.Errorf("spawner %s has no free ports", l.ID)
}

func (l *LocalSpawner) releasePort(port int) {
	l.mu.Lock()
	delete(l.inUse, port-l.BasePort)
	l.mu.Unlock()
}
