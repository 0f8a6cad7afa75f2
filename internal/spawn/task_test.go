package spawn

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestStatusZones(t *testing.T) {
	tests := []struct {
		status    Status
		failure   bool
		active    bool
		finalized bool
		terminal  bool
	}{
		{StatusAborted, true, false, false, true},
		{StatusFailed, true, false, false, true},
		{StatusNone, false, false, false, false},
		{StatusStarting, false, true, false, false},
		{StatusProcessUp, false, true, false, false},
		{StatusFinalized, false, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.IsFailure(); got != tt.failure {
				t.Errorf("IsFailure() = %v, want %v", got, tt.failure)
			}
			if got := tt.status.IsActive(); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
			if got := tt.status.IsFinalized(); got != tt.finalized {
				t.Errorf("IsFinalized() = %v, want %v", got, tt.finalized)
			}
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestTaskNotifiesOncePerTransition(t *testing.T) {
	task := newTask(1, "", nil, nil, nil)

	var mu sync.Mutex
	var seen []Status
	task.Subscribe(func(_ *Task, s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	task.SetStatus(StatusStarting)
	task.SetStatus(StatusStarting) // duplicate, dropped
	task.SetStatus(StatusProcessUp)
	task.Finalize(map[string]string{"roomId": "1"})

	mu.Lock()
	defer mu.Unlock()
	want := []Status{StatusStarting, StatusProcessUp, StatusFinalized}
	if len(seen) != len(want) {
		t.Fatalf("observed %d transitions, want %d (%v)", len(seen), len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestTaskUnsubscribeStopsDelivery(t *testing.T) {
	task := newTask(1, "", nil, nil, nil)

	calls := 0
	handle := task.Subscribe(func(*Task, Status) { calls++ })
	task.SetStatus(StatusStarting)
	task.Unsubscribe(handle)
	task.SetStatus(StatusProcessUp)

	if calls != 1 {
		t.Errorf("handler ran %d times after unsubscribe, want 1", calls)
	}
}

func TestTaskTerminalStatusIsImmutable(t *testing.T) {
	task := newTask(1, "", nil, nil, nil)
	task.SetStatus(StatusFailed)

	task.SetStatus(StatusStarting)
	task.Finalize(map[string]string{"roomId": "9"})

	if got := task.Status(); got != StatusFailed {
		t.Errorf("Status() = %v after terminal, want %v", got, StatusFailed)
	}
	if task.Finalization() != nil {
		t.Error("finalization payload attached to a failed task")
	}
}

func TestTaskAbort(t *testing.T) {
	aborted := false
	task := newTask(1, "", nil, nil, func(*Task) { aborted = true })

	task.SetStatus(StatusStarting)
	task.Abort()

	if !aborted {
		t.Error("abort hook did not run")
	}
	if got := task.Status(); got != StatusAborted {
		t.Errorf("Status() = %v, want %v", got, StatusAborted)
	}

	// Aborting a terminal task is a no-op.
	aborted = false
	task.Abort()
	if aborted {
		t.Error("abort hook ran on a terminal task")
	}
}

func TestTaskConcurrentAbortRunsHookOnce(t *testing.T) {
	var calls int32
	task := newTask(1, "", nil, nil, func(*Task) { atomic.AddInt32(&calls, 1) })
	task.SetStatus(StatusStarting)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task.Abort()
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("abort hook ran %d times, want 1", got)
	}
	if got := task.Status(); got != StatusAborted {
		t.Errorf("Status() = %v, want %v", got, StatusAborted)
	}
}

func TestTaskAbortAfterFinalizeIsNoOp(t *testing.T) {
	task := newTask(1, "", nil, nil, func(*Task) { t.Error("abort hook ran on a finalized task") })
	task.Finalize(map[string]string{"roomId": "2"})

	task.Abort()
	if got := task.Status(); got != StatusFinalized {
		t.Errorf("Status() = %v, want %v", got, StatusFinalized)
	}
}
