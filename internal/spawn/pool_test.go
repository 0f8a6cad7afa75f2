package spawn

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func stubSpawner(id, region string, maxTasks int) *Spawner {
	return &Spawner{
		ID:       id,
		Region:   region,
		MaxTasks: maxTasks,
		Start:    func(*Task) error { return nil },
	}
}

func TestSubmitWithNoSpawners(t *testing.T) {
	pool := NewPool(testLogger())

	if task := pool.SubmitSpawnRequest(nil, "", nil); task != nil {
		t.Errorf("SubmitSpawnRequest() = %v, want nil", task)
	}
}

func TestSubmitFiltersByRegion(t *testing.T) {
	pool := NewPool(testLogger())
	pool.RegisterSpawner(stubSpawner("us-1", "us", 2))

	if task := pool.SubmitSpawnRequest(nil, "eu", nil); task != nil {
		t.Error("request for eu matched a us spawner")
	}
	if task := pool.SubmitSpawnRequest(nil, "us", nil); task == nil {
		t.Error("request for us did not match the us spawner")
	}
	// An empty region matches any spawner.
	if task := pool.SubmitSpawnRequest(nil, "", nil); task == nil {
		t.Error("request with no region did not match")
	}
}

func TestSubmitPicksLeastLoadedSpawner(t *testing.T) {
	pool := NewPool(testLogger())

	starts := map[string]int{}
	for _, id := range []string{"a", "b"} {
		id := id
		pool.RegisterSpawner(&Spawner{
			ID:       id,
			MaxTasks: 10,
			Start:    func(*Task) error { starts[id]++; return nil },
		})
	}

	for i := 0; i < 6; i++ {
		if task := pool.SubmitSpawnRequest(nil, "", nil); task == nil {
			t.Fatalf("request %d was not placed", i)
		}
	}
	if starts["a"] != 3 || starts["b"] != 3 {
		t.Errorf("requests were not balanced: %v", starts)
	}
}

func TestSubmitExhaustsCapacity(t *testing.T) {
	pool := NewPool(testLogger())
	pool.RegisterSpawner(stubSpawner("s", "", 2))

	first := pool.SubmitSpawnRequest(nil, "", nil)
	second := pool.SubmitSpawnRequest(nil, "", nil)
	if first == nil || second == nil {
		t.Fatal("pool rejected requests within capacity")
	}
	if task := pool.SubmitSpawnRequest(nil, "", nil); task != nil {
		t.Error("pool placed a request beyond capacity")
	}

	// A terminal task frees its slot.
	first.Abort()
	if task := pool.SubmitSpawnRequest(nil, "", nil); task == nil {
		t.Error("pool did not reuse the freed slot")
	}
}

func TestSubmitStartFailure(t *testing.T) {
	pool := NewPool(testLogger())
	pool.RegisterSpawner(&Spawner{
		ID:       "broken",
		MaxTasks: 1,
		Start:    func(*Task) error { return io.ErrUnexpectedEOF },
	})

	task := pool.SubmitSpawnRequest(nil, "", nil)
	if task == nil {
		t.Fatal("expected a task handle even for a failed dispatch")
	}
	if got := task.Status(); got != StatusFailed {
		t.Errorf("Status() = %v, want %v", got, StatusFailed)
	}
	// The failed dispatch must have released the spawner's slot.
	if next := pool.SubmitSpawnRequest(nil, "", nil); next == nil {
		t.Error("slot was not released after a failed dispatch")
	}
}

func TestSubmitWorkerFailsSynchronously(t *testing.T) {
	pool := NewPool(testLogger())
	pool.RegisterSpawner(&Spawner{
		ID:       "flaky",
		MaxTasks: 1,
		Start: func(task *Task) error {
			task.SetStatus(StatusFailed)
			return nil
		},
	})

	task := pool.SubmitSpawnRequest(nil, "", nil)
	if task == nil {
		t.Fatal("request was not placed")
	}
	if got := task.Status(); got != StatusFailed {
		t.Fatalf("Status() = %v, want %v", got, StatusFailed)
	}
	// A task settled from inside Start must still free the spawner's slot.
	if next := pool.SubmitSpawnRequest(nil, "", nil); next == nil {
		t.Error("slot was not released after a synchronous worker failure")
	}
}

func TestFinalizeTask(t *testing.T) {
	pool := NewPool(testLogger())
	pool.RegisterSpawner(stubSpawner("s", "", 1))

	task := pool.SubmitSpawnRequest(nil, "", nil)
	if task == nil {
		t.Fatal("request was not placed")
	}

	pool.FinalizeTask(task.ID, map[string]string{"roomId": "4"})
	if got := task.Status(); got != StatusFinalized {
		t.Fatalf("Status() = %v, want %v", got, StatusFinalized)
	}
	if got := task.Finalization()["roomId"]; got != "4" {
		t.Errorf("Finalization()[roomId] = %q, want %q", got, "4")
	}

	// Unknown and settled ids are dropped quietly.
	pool.FinalizeTask(9999, nil)
	pool.FinalizeTask(task.ID, map[string]string{"roomId": "5"})
	if got := task.Finalization()["roomId"]; got != "4" {
		t.Errorf("payload overwritten on settled task: %q", got)
	}
}
