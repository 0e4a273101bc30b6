package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTask is a minimal Task used across the package's tests. execFn, when
// set, is invoked from ExecuteOnce; otherwise a single COMPLETED step is
// returned.
type fakeTask struct {
	id     string
	symbol string
	state  TaskState

	execFn func() StepResult
	execN  atomic.Int32

	mu      sync.Mutex
	stopped bool
}

func (f *fakeTask) ID() string            { return f.id }
func (f *fakeTask) Symbol() string        { return f.symbol }
func (f *fakeTask) State() TaskState      { return f.state }
func (f *fakeTask) ContextType() string   { return "fake" }
func (f *fakeTask) Context() any          { return map[string]any{"id": f.id} }
func (f *fakeTask) Start(context.Context) error { return nil }
func (f *fakeTask) Cleanup() error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}
func (f *fakeTask) Stop(context.Context) error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTask) ExecuteOnce(ctx context.Context) StepResult {
	f.execN.Add(1)
	if f.execFn != nil {
		return f.execFn()
	}
	f.state = StateCompleted
	return StepResult{ShouldContinue: false, State: StateCompleted}
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerRunsReadyTaskAndRemovesOnCompletion(t *testing.T) {
	t.Parallel()

	s := New(5*time.Millisecond, time.Second, time.Second, nil, noopLogger())
	task := &fakeTask{id: "t1", symbol: "BTC_USDT", state: StateRunning}
	s.Add(task)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	deadline := time.After(150 * time.Millisecond)
	for {
		if len(s.Snapshot()) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("task was never removed after completion")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if task.execN.Load() == 0 {
		t.Error("ExecuteOnce was never called")
	}
}

func TestSchedulerSameSymbolTasksSerialize(t *testing.T) {
	t.Parallel()

	var running int32
	var maxConcurrent int32
	exec := func() StepResult {
		n := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&maxConcurrent)
			if n <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return StepResult{ShouldContinue: true, NextDelay: time.Hour, State: StateRunning}
	}

	s := New(5*time.Millisecond, time.Second, time.Second, nil, noopLogger())
	s.Add(&fakeTask{id: "a", symbol: "BTC_USDT", state: StateRunning, execFn: exec})
	s.Add(&fakeTask{id: "b", symbol: "BTC_USDT", state: StateRunning, execFn: exec})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if atomic.LoadInt32(&maxConcurrent) > 1 {
		t.Errorf("same-symbol tasks ran concurrently: max observed = %d", maxConcurrent)
	}
}

func TestSchedulerDifferentSymbolsRunConcurrently(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	wg.Add(2)
	exec := func() StepResult {
		wg.Done()
		wg.Wait() // blocks until both tasks have started their step
		return StepResult{ShouldContinue: true, NextDelay: time.Hour, State: StateRunning}
	}

	s := New(5*time.Millisecond, time.Second, time.Second, nil, noopLogger())
	s.Add(&fakeTask{id: "a", symbol: "BTC_USDT", state: StateRunning, execFn: exec})
	s.Add(&fakeTask{id: "b", symbol: "ETH_USDT", state: StateRunning, execFn: exec})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	s.Run(ctx) // would deadlock within the timeout if tasks couldn't run concurrently
}

func TestSchedulerFailingTaskBacksOffButIsNotRemoved(t *testing.T) {
	t.Parallel()

	task := &fakeTask{id: "t1", symbol: "BTC_USDT", state: StateRunning, execFn: func() StepResult {
		return StepResult{ShouldContinue: true, NextDelay: time.Millisecond, State: StateRunning, Err: fmt.Errorf("boom")}
	}}

	s := New(5*time.Millisecond, time.Second, time.Second, nil, noopLogger())
	s.Add(task)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if len(s.Snapshot()) != 1 {
		t.Errorf("failing non-terminal task should remain scheduled, snapshot = %v", s.Snapshot())
	}
}

func TestSchedulerPersistsContextAfterSuccessfulStep(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	persist, err := Open(dir, 1, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	task := &fakeTask{id: "t1", symbol: "BTC_USDT", state: StateRunning, execFn: func() StepResult {
		return StepResult{ShouldContinue: true, NextDelay: time.Hour, State: StateRunning}
	}}

	s := New(5*time.Millisecond, time.Second, time.Second, persist, noopLogger())
	s.Add(task)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	recovered, err := persist.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(recovered) != 1 {
		t.Fatalf("expected 1 persisted context, got %d", len(recovered))
	}
}
