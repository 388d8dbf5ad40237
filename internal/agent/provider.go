// Package agent routes workflow steps to model providers.
package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/rolechain/internal/config"
	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/logging"
)

// DefaultTimeout bounds provider HTTP requests when no timeout is configured.
const DefaultTimeout = 120 * time.Second

// Request is a single completion request.
type Request struct {
	Role   string
	Model  string
	System string
	Prompt string
}

// Provider produces text for a request.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderConfig holds resolved provider settings.
type ProviderConfig struct {
	Name        string
	Type        string
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// ProviderConfigFrom resolves a configuration entry, reading the API key from
// the environment when the entry names a variable.
func ProviderConfigFrom(name string, pc config.ProviderConfig) ProviderConfig {
	timeout := pc.TimeoutDuration()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return ProviderConfig{
		Name:        name,
		Type:        pc.Type,
		BaseURL:     pc.BaseURL,
		APIKey:      pc.ResolveAPIKey(),
		Model:       pc.Model,
		MaxTokens:   pc.MaxTokens,
		Temperature: pc.Temperature,
		Timeout:     timeout,
	}
}

// Factory creates a provider from configuration.
type Factory func(cfg ProviderConfig, logger *logging.Logger) (Provider, error)

// Registry manages available providers by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	configs   map[string]ProviderConfig
	providers map[string]Provider
	logger    *logging.Logger
}

// NewRegistry creates a registry with the built-in provider types.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Registry{
		factories: make(map[string]Factory),
		configs:   make(map[string]ProviderConfig),
		providers: make(map[string]Provider),
		logger:    logger,
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	r.RegisterFactory("openai", NewOpenAIClient)
	r.RegisterFactory("anthropic", NewAnthropicClient)
	r.RegisterFactory("echo", NewEchoClient)
}

// RegisterFactory registers a factory for a provider type.
func (r *Registry) RegisterFactory(typ string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = factory
}

// Register adds a ready provider under name.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Configure sets configuration for a provider name.
func (r *Registry) Configure(cfg ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[cfg.Type]; !ok {
		return core.ErrValidation(core.CodeInvalidConfig, fmt.Sprintf("provider %s: unknown type %q", cfg.Name, cfg.Type))
	}
	r.configs[cfg.Name] = cfg
	// Drop the cached client so the next Get rebuilds it.
	delete(r.providers, cfg.Name)
	return nil
}

// Get returns a provider by name, creating it if necessary.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}

	cfg, ok := r.configs[name]
	if !ok {
		return nil, core.ErrNotFound(core.CodeProviderNotFound, "provider", name)
	}
	factory := r.factories[cfg.Type]

	p, err := factory(cfg, r.logger.With("provider", name))
	if err != nil {
		return nil, fmt.Errorf("creating provider %s: %w", name, err)
	}
	r.providers[name] = p
	return p, nil
}

// List returns the configured provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.configs)+len(r.providers))
	for name := range r.configs {
		seen[name] = true
	}
	for name := range r.providers {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConfigureFromConfig configures every provider listed in cfg.
func ConfigureFromConfig(r *Registry, cfg *config.Config) error {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := r.Configure(ProviderConfigFrom(name, cfg.Providers[name])); err != nil {
			return err
		}
	}
	return nil
}
