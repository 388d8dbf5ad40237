package core

import "context"

// AgentCaller produces text for a role given a fully built prompt.
// It owns model selection, auth and transport.
type AgentCaller interface {
	CallAgent(ctx context.Context, roleID, prompt string) (string, error)
}

// AgentCallerFunc adapts a function to AgentCaller.
type AgentCallerFunc func(ctx context.Context, roleID, prompt string) (string, error)

// CallAgent implements AgentCaller.
func (f AgentCallerFunc) CallAgent(ctx context.Context, roleID, prompt string) (string, error) {
	return f(ctx, roleID, prompt)
}

// RoleStore persists the role catalog.
type RoleStore interface {
	SaveRole(ctx context.Context, role *Role) error
	GetRole(ctx context.Context, id string) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
	DeleteRole(ctx context.Context, id string) error
}

// TemplateStore persists step templates.
type TemplateStore interface {
	SaveTemplate(ctx context.Context, tmpl *Template) error
	GetTemplate(ctx context.Context, id string) (*Template, error)
	ListTemplates(ctx context.Context) ([]*Template, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// TaskStore persists task records between runs.
type TaskStore interface {
	SaveTask(ctx context.Context, task *TaskRecord) error
	GetTask(ctx context.Context, id TaskID) (*TaskRecord, error)
	ListTasks(ctx context.Context) ([]*TaskRecord, error)
	DeleteTask(ctx context.Context, id TaskID) error
}

// Store groups every persistence port.
type Store interface {
	RoleStore
	TemplateStore
	TaskStore
	Close() error
}
