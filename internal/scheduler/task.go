// Package scheduler implements the cooperative task engine (spec §4.5): a
// ready-set loop that runs each ready task in its own goroutine, never two
// tasks of the same symbol at once, persisting context after every
// successful step and recovering it on restart.
package scheduler

import (
	"context"
	"time"
)

// TaskState is the closed set of lifecycle states a Task can occupy.
type TaskState string

const (
	StateIdle      TaskState = "IDLE"
	StateRunning   TaskState = "RUNNING"
	StatePaused    TaskState = "PAUSED"
	StateCompleted TaskState = "COMPLETED"
	StateCancelled TaskState = "CANCELLED"
	StateError     TaskState = "ERROR"
)

// IsTerminal reports whether a task in this state is eligible for removal
// from the scheduler's ready set. ERROR is terminal: a task that has
// translated a domain error into StateError is done retrying on its own
// and is persisted one last time so an operator can inspect and either
// resume (clear error, re-enqueue) or delete it (spec §7).
func (s TaskState) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateError
}

// StepResult is returned by every ExecuteOnce call.
type StepResult struct {
	ShouldContinue bool
	NextDelay      time.Duration
	State          TaskState
	Err            error
}

// Task is one schedulable unit of strategy work (spec §4.5.1). Every task
// exposes a stable ID (embedded in its persisted context so recovery can
// reassociate state), the symbol it serializes against, and a typed,
// serializable context used for persistence.
type Task interface {
	ID() string
	Symbol() string
	State() TaskState
	// ContextType names the concrete context type for persistence and
	// startup reconstruction (spec §4.5.3's "reinstantiates the correct
	// task type by context_type").
	ContextType() string
	// Context returns the current persistable context value.
	Context() any

	ExecuteOnce(ctx context.Context) StepResult
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Cleanup() error
}

// Factory reconstructs a Task of a given context_type from its persisted
// context bytes, for startup recovery.
type Factory func(taskID string, contextJSON []byte) (Task, error)
