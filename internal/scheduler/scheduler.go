package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// defaultErrorBackoff is the fallback delay applied to a task after a
// failing ExecuteOnce call when the caller passes <= 0 (spec §4.5.2:
// "backs off to now + 1s").
const defaultErrorBackoff = time.Second

// entry is the scheduler's bookkeeping record for one registered task.
type entry struct {
	task          Task
	nextExecution time.Time
}

// Scheduler runs a single cooperative ready-set loop: on every tick it
// computes which tasks are due, groups them by symbol (one mutex per
// symbol, so same-symbol tasks never run concurrently), and dispatches
// each ready task to its own goroutine with per-task error isolation
// (spec §4.5.2).
type Scheduler struct {
	tickInterval time.Duration
	errorBackoff time.Duration
	gracePeriod  time.Duration
	persist      *Persistence
	logger       *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry

	symbolLocksMu sync.Mutex
	symbolLocks   map[string]*sync.Mutex

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Scheduler. persist may be nil to disable persistence.
func New(tickInterval, taskErrorBackoff, gracePeriod time.Duration, persist *Persistence, logger *slog.Logger) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = 250 * time.Millisecond
	}
	if taskErrorBackoff <= 0 {
		taskErrorBackoff = defaultErrorBackoff
	}
	if gracePeriod <= 0 {
		gracePeriod = 5 * time.Second
	}
	return &Scheduler{
		tickInterval: tickInterval,
		errorBackoff: taskErrorBackoff,
		gracePeriod:  gracePeriod,
		persist:      persist,
		logger:       logger.With("component", "scheduler"),
		entries:      make(map[string]*entry),
		symbolLocks:  make(map[string]*sync.Mutex),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Add registers a task to run starting now.
func (s *Scheduler) Add(task Task) {
	s.mu.Lock()
	s.entries[task.ID()] = &entry{task: task, nextExecution: time.Now()}
	s.mu.Unlock()
}

// Remove drops a task without calling Stop/Cleanup on it (callers should
// call those themselves first unless the task is already terminal).
func (s *Scheduler) Remove(taskID string) {
	s.mu.Lock()
	delete(s.entries, taskID)
	s.mu.Unlock()
}

// Snapshot returns a point-in-time status list, grounded on the teacher's
// admin-surface status reporting.
type Snapshot struct {
	TaskID        string
	Symbol        string
	State         TaskState
	NextExecution time.Time
}

// Snapshot reports the current state of every registered task.
func (s *Scheduler) Snapshot() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, Snapshot{
			TaskID:        e.task.ID(),
			Symbol:        e.task.Symbol(),
			State:         e.task.State(),
			NextExecution: e.nextExecution,
		})
	}
	return out
}

func (s *Scheduler) symbolLock(symbol string) *sync.Mutex {
	s.symbolLocksMu.Lock()
	defer s.symbolLocksMu.Unlock()
	m, ok := s.symbolLocks[symbol]
	if !ok {
		m = &sync.Mutex{}
		s.symbolLocks[symbol] = m
	}
	return m
}

// Run starts the cooperative loop; blocks until ctx is cancelled or Stop
// is called.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runReadyBatch(ctx)
		}
	}
}

// Stop requests the loop to exit and waits up to gracePeriod for in-flight
// batches to settle (spec §4.5.2/§5's 5s graceful-stop period).
func (s *Scheduler) Stop() {
	close(s.stopCh)
	select {
	case <-s.doneCh:
	case <-time.After(s.gracePeriod):
		s.logger.Warn("scheduler stop grace period elapsed before loop exited")
	}
}

func (s *Scheduler) readySet(now time.Time) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	ready := make([]*entry, 0)
	for _, e := range s.entries {
		st := e.task.State()
		if st == StateCompleted || st == StateCancelled {
			continue
		}
		if !e.nextExecution.After(now) {
			ready = append(ready, e)
		}
	}
	return ready
}

func (s *Scheduler) runReadyBatch(ctx context.Context) {
	now := time.Now()
	ready := s.readySet(now)
	if len(ready) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, e := range ready {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			s.runOne(ctx, e)
		}(e)
	}
	wg.Wait()
}

// runOne acquires the task's symbol mutex, executes one step, and applies
// per-task error isolation: a panic or error never aborts the batch, only
// this task's own scheduling.
func (s *Scheduler) runOne(ctx context.Context, e *entry) {
	lock := s.symbolLock(e.task.Symbol())
	lock.Lock()
	defer lock.Unlock()

	result := s.executeWithRecover(ctx, e.task)

	if result.Err != nil {
		s.logger.Warn("task execution failed, backing off", "task_id", e.task.ID(), "error", result.Err)
		e.nextExecution = time.Now().Add(s.errorBackoff)
		if !result.State.IsTerminal() {
			return
		}
	}

	if s.persist != nil {
		if err := s.persist.Save(e.task.ID(), e.task.ContextType(), e.task.Context()); err != nil {
			s.logger.Warn("persist task context failed", "task_id", e.task.ID(), "error", err)
		}
	}

	if !result.ShouldContinue || result.State.IsTerminal() {
		if err := e.task.Cleanup(); err != nil {
			s.logger.Warn("task cleanup failed", "task_id", e.task.ID(), "error", err)
		}
		s.Remove(e.task.ID())
		return
	}

	delay := result.NextDelay
	if delay <= 0 {
		delay = s.tickInterval
	}
	e.nextExecution = time.Now().Add(delay)
}

func (s *Scheduler) executeWithRecover(ctx context.Context, task Task) (result StepResult) {
	defer func() {
		if r := recover(); r != nil {
			result = StepResult{ShouldContinue: true, NextDelay: s.errorBackoff, State: StateError, Err: panicError{r}}
		}
	}()
	return task.ExecuteOnce(ctx)
}

type panicError struct{ value any }

func (p panicError) Error() string { return fmt.Sprintf("task panicked: %v", p.value) }
