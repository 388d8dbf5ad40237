package testutil

import (
	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

// NewTestRole returns a valid role with the given id.
func NewTestRole(id string) *core.Role {
	return &core.Role{ID: id, Name: id, SystemPrompt: "You are " + id + "."}
}

// NewTestTemplate returns a template whose steps are bare labels.
func NewTestTemplate(id string, labels ...string) *core.Template {
	steps := make([]core.StepDefinition, len(labels))
	for i, l := range labels {
		steps[i] = core.LabelStep(l)
	}
	return &core.Template{ID: id, Name: id, Steps: steps}
}

// NewTestTask creates an idle task over labels, treating every label as a
// known role. Options run after construction.
func NewTestTask(input string, labels []string, opts ...func(*core.TaskRecord)) *core.TaskRecord {
	task, err := core.NewTaskRecord("task-1", NewTestTemplate("tmpl", labels...), input, nil, "")
	if err != nil {
		panic(err)
	}
	for _, opt := range opts {
		opt(task)
	}
	return task
}
