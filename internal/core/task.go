package core

import (
	"fmt"
	"math"
	"time"
)

// TaskID uniquely identifies a task record.
type TaskID string

// TaskStatus represents the lifecycle state of a task record.
type TaskStatus string

const (
	TaskStatusIdle      TaskStatus = "idle"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusError     TaskStatus = "error"
)

// ParseTaskStatus validates a status string.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch st := TaskStatus(s); st {
	case TaskStatusIdle, TaskStatusRunning, TaskStatusPaused, TaskStatusCompleted, TaskStatusError:
		return st, nil
	default:
		return "", fmt.Errorf("unknown task status %q", s)
	}
}

// TaskRecord is one run of a template. The engine mutates it in place while
// running; callers persist it between runs.
type TaskRecord struct {
	ID          TaskID     `json:"id"`
	TemplateID  string     `json:"template_id"`
	Input       string     `json:"input"`
	Steps       []Step     `json:"steps"`
	CurrentStep int        `json:"current_step"`
	Results     []string   `json:"results"`
	Status      TaskStatus `json:"status"`
	Progress    int        `json:"progress"`
	TokenCost   int        `json:"token_cost"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTaskRecord creates a task record from a template, normalizing its steps once.
func NewTaskRecord(id TaskID, tmpl *Template, input string, resolver RoleResolver, fallbackRole string) (*TaskRecord, error) {
	if id == "" {
		return nil, ErrValidation(CodeInvalidID, "task id cannot be empty")
	}
	if tmpl == nil {
		return nil, ErrValidation(CodeInvalidStep, "template is required")
	}
	steps, err := NormalizeSteps(tmpl.Steps, resolver, fallbackRole)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &TaskRecord{
		ID:         id,
		TemplateID: tmpl.ID,
		Input:      input,
		Steps:      steps,
		Results:    []string{},
		Status:     TaskStatusIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// TotalSteps returns the number of steps.
func (t *TaskRecord) TotalSteps() int {
	return len(t.Steps)
}

// RecomputeProgress derives Progress from CurrentStep.
func (t *TaskRecord) RecomputeProgress() {
	t.Progress = ComputeProgress(t.CurrentStep, len(t.Steps))
}

// ComputeProgress returns round(current / total * 100), clamped to 0..100.
func ComputeProgress(current, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(current) / float64(total) * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// SetResult writes the result for step i, growing Results as needed.
func (t *TaskRecord) SetResult(i int, result string) {
	for len(t.Results) <= i {
		t.Results = append(t.Results, "")
	}
	t.Results[i] = result
}

// Resumable reports whether a run can pick up this record.
func (t *TaskRecord) Resumable() bool {
	return t.Status == TaskStatusIdle || t.Status == TaskStatusPaused || t.Status == TaskStatusError
}

// IsTerminal reports whether the record finished.
func (t *TaskRecord) IsTerminal() bool {
	return t.Status == TaskStatusCompleted
}

// FinalOutput returns the last recorded result, if any.
func (t *TaskRecord) FinalOutput() string {
	if len(t.Results) == 0 {
		return ""
	}
	return t.Results[len(t.Results)-1]
}

// Clone returns a deep copy safe to hand to other goroutines.
func (t *TaskRecord) Clone() *TaskRecord {
	if t == nil {
		return nil
	}
	c := *t
	c.Steps = append([]Step(nil), t.Steps...)
	c.Results = append([]string{}, t.Results...)
	return &c
}

// Validate checks task invariants.
func (t *TaskRecord) Validate() error {
	if t.ID == "" {
		return ErrValidation(CodeInvalidID, "task id cannot be empty")
	}
	if len(t.Steps) == 0 {
		return ErrValidation(CodeEmptySteps, "task has no steps")
	}
	for i, s := range t.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	if t.CurrentStep < 0 || t.CurrentStep >= len(t.Steps) {
		return ErrState(CodeInvalidState, fmt.Sprintf("current step %d out of range 0..%d", t.CurrentStep, len(t.Steps)-1))
	}
	return nil
}
