package engine

import (
	"fmt"
	"time"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

// EventKind names the notifications an engine emits.
type EventKind string

const (
	EventLog    EventKind = "log"
	EventUpdate EventKind = "update"
	EventError  EventKind = "error"
)

// ParseEventKind validates an event kind name.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(s); k {
	case EventLog, EventUpdate, EventError:
		return k, nil
	default:
		return "", core.ErrValidation("UNKNOWN_EVENT", fmt.Sprintf("unknown event kind %q", s))
	}
}

// Level is the severity of a log event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is delivered to listeners synchronously, in emission order.
// Task is a snapshot owned by the receiver.
type Event struct {
	Kind     EventKind
	TaskID   core.TaskID
	Time     time.Time
	Step     int
	StepName string
	Role     string
	Level    Level
	Message  string
	Task     *core.TaskRecord
	Err      error
}

// Listener receives engine events. It must not block or call Run.
type Listener func(Event)
