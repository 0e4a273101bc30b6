package adminserver

import "time"

// Event is the wrapper broadcast to every connected /ws observer, adapted
// from the teacher's DashboardEvent — "type" tags the payload shape so a
// generic observer can dispatch without a schema registry.
type Event struct {
	Type      string    `json:"type"` // "snapshot", "connection_state", "task_execution"
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// ConnectionStateEvent reports one composite's WS connection-state
// transition (spec §6.4: "the core emits metrics for: connection state
// transitions, WS reconnects").
type ConnectionStateEvent struct {
	Exchange string `json:"exchange"`
	Role     string `json:"role"`
	State    string `json:"state"`
}

// TaskExecutionEvent reports one scheduler step, whether it advanced,
// failed, or completed (spec §6.4: "...task executions").
type TaskExecutionEvent struct {
	TaskID string `json:"task_id"`
	Symbol string `json:"symbol"`
	State  string `json:"state"`
	Err    string `json:"error,omitempty"`
}

func newEvent(kind string, data any) Event {
	return Event{Type: kind, Timestamp: time.Now(), Data: data}
}
