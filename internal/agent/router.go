package agent

import (
	"context"
	"fmt"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/logging"
)

// RoleLookup resolves role ids to catalog roles.
type RoleLookup interface {
	GetRole(ctx context.Context, id string) (*core.Role, error)
}

// Router implements core.AgentCaller by resolving a role and dispatching the
// prompt to the role's provider.
type Router struct {
	roles           RoleLookup
	registry        *Registry
	defaultProvider string
	fallbackRole    string
	logger          *logging.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithDefaultProvider sets the provider used by roles that name none.
func WithDefaultProvider(name string) RouterOption {
	return func(r *Router) { r.defaultProvider = name }
}

// WithFallbackRole names the one role allowed to run bare when the catalog
// does not define it.
func WithFallbackRole(id string) RouterOption {
	return func(r *Router) { r.fallbackRole = id }
}

// WithRouterLogger sets the logger.
func WithRouterLogger(l *logging.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter creates a router over roles and registry.
func NewRouter(roles RoleLookup, registry *Registry, opts ...RouterOption) *Router {
	r := &Router{
		roles:           roles,
		registry:        registry,
		defaultProvider: "echo",
		fallbackRole:    core.DefaultFallbackRole,
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CallAgent implements core.AgentCaller.
func (r *Router) CallAgent(ctx context.Context, roleID, prompt string) (string, error) {
	role, err := r.resolve(ctx, roleID)
	if err != nil {
		return "", err
	}

	providerName := role.Provider
	if providerName == "" {
		providerName = r.defaultProvider
	}
	provider, err := r.registry.Get(providerName)
	if err != nil {
		return "", fmt.Errorf("role %s: %w", role.ID, err)
	}

	r.logger.Debug("dispatching step",
		"role", role.ID,
		"provider", providerName,
		"model", role.Model,
		"prompt_chars", len(prompt))

	return provider.Complete(ctx, Request{
		Role:   role.ID,
		Model:  role.Model,
		System: role.SystemPrompt,
		Prompt: prompt,
	})
}

// resolve finds roleID in the catalog. Only the fallback role may be absent,
// in which case it runs as a bare role with no system prompt. Steps reach
// the router with roles already resolved at task creation, so any other
// missing id means the catalog changed underneath the task.
func (r *Router) resolve(ctx context.Context, roleID string) (*core.Role, error) {
	if r.roles == nil {
		return &core.Role{ID: roleID}, nil
	}

	role, err := r.roles.GetRole(ctx, roleID)
	if err == nil {
		return role, nil
	}
	if !core.IsCategory(err, core.ErrCatNotFound) {
		return nil, fmt.Errorf("resolving role %s: %w", roleID, err)
	}
	if roleID != "" && roleID == r.fallbackRole {
		r.logger.Debug("fallback role not in catalog, using bare role", "role", roleID)
		return &core.Role{ID: roleID}, nil
	}
	return nil, core.ErrNotFound(core.CodeRoleNotFound, "role", roleID)
}
