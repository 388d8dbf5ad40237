package events

import "github.com/hugo-lorenzo-mato/rolechain/internal/core"

// Event types published for task runs.
const (
	TypeTaskLog    = "task_log"
	TypeTaskUpdate = "task_update"
	TypeTaskError  = "task_error"
)

// TaskLogEvent carries one line of a run's chained log.
type TaskLogEvent struct {
	BaseEvent
	Step    int    `json:"step"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// NewTaskLogEvent creates a task log event.
func NewTaskLogEvent(taskID string, step int, level, message string) TaskLogEvent {
	return TaskLogEvent{
		BaseEvent: NewBaseEvent(TypeTaskLog, taskID),
		Step:      step,
		Level:     level,
		Message:   message,
	}
}

// TaskUpdateEvent carries a snapshot of the task record.
type TaskUpdateEvent struct {
	BaseEvent
	Task *core.TaskRecord `json:"task"`
}

// NewTaskUpdateEvent creates a task update event. The snapshot must not be
// shared with a running engine.
func NewTaskUpdateEvent(snapshot *core.TaskRecord) TaskUpdateEvent {
	return TaskUpdateEvent{
		BaseEvent: NewBaseEvent(TypeTaskUpdate, string(snapshot.ID)),
		Task:      snapshot,
	}
}

// TaskErrorEvent reports an engine fault that aborted a run.
type TaskErrorEvent struct {
	BaseEvent
	Error string `json:"error"`
}

// NewTaskErrorEvent creates a task error event.
func NewTaskErrorEvent(taskID string, err error) TaskErrorEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return TaskErrorEvent{
		BaseEvent: NewBaseEvent(TypeTaskError, taskID),
		Error:     msg,
	}
}
