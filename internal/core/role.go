package core

import (
	"fmt"
	"strings"
	"time"
)

// Role is an agent persona: a system prompt bound to a provider and model.
type Role struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	SystemPrompt string    `json:"system_prompt" yaml:"system_prompt"`
	Provider     string    `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model        string    `json:"model,omitempty" yaml:"model,omitempty"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"-"`
}

// Validate checks role invariants.
func (r *Role) Validate() error {
	if !ValidID(r.ID) {
		return ErrValidation(CodeInvalidID, fmt.Sprintf("invalid role id %q", r.ID))
	}
	return nil
}

// DisplayName returns Name, or the id when no name is set.
func (r *Role) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// Template is an ordered group of steps a task is created from.
type Template struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []StepDefinition `json:"steps" yaml:"steps"`
	UpdatedAt   time.Time        `json:"updated_at" yaml:"-"`
}

// Validate checks template invariants, including that its steps normalize.
func (t *Template) Validate() error {
	if !ValidID(t.ID) {
		return ErrValidation(CodeInvalidID, fmt.Sprintf("invalid template id %q", t.ID))
	}
	if _, err := NormalizeSteps(t.Steps, nil, DefaultFallbackRole); err != nil {
		return err
	}
	return nil
}

// ValidID reports whether id is usable as a catalog key and URL segment.
func ValidID(id string) bool {
	if strings.TrimSpace(id) == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
