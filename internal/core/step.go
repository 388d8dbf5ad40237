package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// StepKind tags the two admissible step shapes.
type StepKind string

const (
	// StepKindLabel is a bare label used as both display name and role id.
	StepKindLabel StepKind = "label"
	// StepKindFull carries an explicit name, role and optional prompt template.
	StepKindFull StepKind = "full"
)

// DefaultFallbackRole is used for bare labels that do not name a known role.
const DefaultFallbackRole = "assistant"

// StepDefinition is one entry of a template's step list as authored by the user.
// On the wire it is either a bare string or an object with name, role and prompt.
type StepDefinition struct {
	Kind   StepKind
	Name   string
	Role   string
	Prompt string
}

// LabelStep creates a bare label step definition.
func LabelStep(label string) StepDefinition {
	return StepDefinition{Kind: StepKindLabel, Name: label}
}

// FullStep creates a structured step definition.
func FullStep(name, role, prompt string) StepDefinition {
	return StepDefinition{Kind: StepKindFull, Name: name, Role: role, Prompt: prompt}
}

type stepObject struct {
	Name   string `json:"name" yaml:"name"`
	Role   string `json:"role" yaml:"role"`
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// MarshalJSON writes labels as strings and full steps as objects.
func (d StepDefinition) MarshalJSON() ([]byte, error) {
	if d.Kind == StepKindLabel {
		return json.Marshal(d.Name)
	}
	return json.Marshal(stepObject{Name: d.Name, Role: d.Role, Prompt: d.Prompt})
}

// UnmarshalJSON accepts either a string or an object.
func (d *StepDefinition) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var label string
		if err := json.Unmarshal(trimmed, &label); err != nil {
			return err
		}
		*d = LabelStep(label)
		return nil
	}
	var obj stepObject
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return fmt.Errorf("step must be a string or an object: %w", err)
	}
	*d = FullStep(obj.Name, obj.Role, obj.Prompt)
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (d StepDefinition) MarshalYAML() (interface{}, error) {
	if d.Kind == StepKindLabel {
		return d.Name, nil
	}
	return stepObject{Name: d.Name, Role: d.Role, Prompt: d.Prompt}, nil
}

// UnmarshalYAML accepts either a scalar or a mapping.
func (d *StepDefinition) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*d = LabelStep(node.Value)
		return nil
	case yaml.MappingNode:
		var obj stepObject
		if err := node.Decode(&obj); err != nil {
			return err
		}
		*d = FullStep(obj.Name, obj.Role, obj.Prompt)
		return nil
	default:
		return fmt.Errorf("line %d: step must be a string or a mapping", node.Line)
	}
}

// Step is the normalized form consumed by the engine.
type Step struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Prompt string `json:"prompt,omitempty"`
}

// HasTemplate reports whether the step carries an explicit prompt template.
func (s Step) HasTemplate() bool {
	return s.Prompt != ""
}

// Validate checks that a normalized step can be executed.
func (s Step) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrValidation(CodeInvalidStep, "step name cannot be empty")
	}
	if strings.TrimSpace(s.Role) == "" {
		return ErrValidation(CodeMissingRole, fmt.Sprintf("step %q has no role", s.Name))
	}
	return nil
}

// RoleResolver reports whether a role id is known to the catalog.
type RoleResolver interface {
	HasRole(id string) bool
}

// RoleSet is a RoleResolver backed by a set of ids.
type RoleSet map[string]bool

// HasRole implements RoleResolver.
func (s RoleSet) HasRole(id string) bool {
	return s[id]
}

// NormalizeSteps resolves step definitions into executable steps.
// Bare labels keep their label as the role when the resolver knows it and fall
// back to fallbackRole otherwise. Structured steps must name a role the
// resolver knows, or the fallback role itself. A nil resolver accepts every
// role.
func NormalizeSteps(defs []StepDefinition, resolver RoleResolver, fallbackRole string) ([]Step, error) {
	if len(defs) == 0 {
		return nil, ErrValidation(CodeEmptySteps, "template has no steps")
	}
	if fallbackRole == "" {
		fallbackRole = DefaultFallbackRole
	}

	steps := make([]Step, 0, len(defs))
	for i, def := range defs {
		var step Step
		switch def.Kind {
		case StepKindLabel:
			label := strings.TrimSpace(def.Name)
			if label == "" {
				return nil, ErrValidation(CodeInvalidStep, fmt.Sprintf("step %d: empty label", i)).
					WithDetail("index", i)
			}
			role := label
			if resolver != nil && !resolver.HasRole(label) {
				role = fallbackRole
			}
			step = Step{Name: label, Role: role}
		case StepKindFull:
			role := strings.TrimSpace(def.Role)
			if role == "" {
				return nil, ErrValidation(CodeMissingRole, fmt.Sprintf("step %d: role is required", i)).
					WithDetail("index", i)
			}
			if resolver != nil && role != fallbackRole && !resolver.HasRole(role) {
				return nil, ErrValidation(CodeMissingRole, fmt.Sprintf("step %d: unknown role %q", i, role)).
					WithDetail("index", i).
					WithDetail("role", role)
			}
			name := strings.TrimSpace(def.Name)
			if name == "" {
				name = role
			}
			step = Step{Name: name, Role: role, Prompt: def.Prompt}
		default:
			return nil, ErrValidation(CodeInvalidStep, fmt.Sprintf("step %d: unknown kind %q", i, def.Kind)).
				WithDetail("index", i)
		}
		steps = append(steps, step)
	}
	return steps, nil
}
