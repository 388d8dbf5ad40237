package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/rolechain/internal/config"
	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/logging"
)

type roleMap map[string]*core.Role

func (m roleMap) GetRole(_ context.Context, id string) (*core.Role, error) {
	if r, ok := m[id]; ok {
		return r, nil
	}
	return nil, core.ErrNotFound(core.CodeRoleNotFound, "role", id)
}

type recordingProvider struct {
	name     string
	requests []Request
	err      error
}

func (p *recordingProvider) Name() string { return p.name }

func (p *recordingProvider) Complete(_ context.Context, req Request) (string, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return "", p.err
	}
	return p.name + ":" + req.Prompt, nil
}

func newTestRouter(roles RoleLookup) (*Router, *recordingProvider, *recordingProvider) {
	reg := NewRegistry(logging.NewNop())
	fast := &recordingProvider{name: "fast"}
	smart := &recordingProvider{name: "smart"}
	reg.Register("fast", fast)
	reg.Register("smart", smart)
	return NewRouter(roles, reg, WithDefaultProvider("fast"), WithFallbackRole("assistant")), fast, smart
}

func TestRouter_UsesRoleProviderAndPrompt(t *testing.T) {
	roles := roleMap{
		"critic": {ID: "critic", SystemPrompt: "Find flaws.", Provider: "smart", Model: "big"},
	}
	router, fast, smart := newTestRouter(roles)

	out, err := router.CallAgent(context.Background(), "critic", "review")
	require.NoError(t, err)
	assert.Equal(t, "smart:review", out)
	assert.Empty(t, fast.requests)
	require.Len(t, smart.requests, 1)
	assert.Equal(t, Request{Role: "critic", Model: "big", System: "Find flaws.", Prompt: "review"}, smart.requests[0])
}

func TestRouter_FallbackRoleFromCatalog(t *testing.T) {
	roles := roleMap{
		"assistant": {ID: "assistant", SystemPrompt: "Be helpful."},
	}
	router, fast, _ := newTestRouter(roles)

	out, err := router.CallAgent(context.Background(), "assistant", "hello")
	require.NoError(t, err)
	assert.Equal(t, "fast:hello", out)
	require.Len(t, fast.requests, 1)
	assert.Equal(t, "assistant", fast.requests[0].Role)
	assert.Equal(t, "Be helpful.", fast.requests[0].System)
}

func TestRouter_BareFallbackRoleWhenCatalogEmpty(t *testing.T) {
	router, fast, _ := newTestRouter(roleMap{})

	_, err := router.CallAgent(context.Background(), "assistant", "draft")
	require.NoError(t, err)
	require.Len(t, fast.requests, 1)
	assert.Equal(t, "assistant", fast.requests[0].Role)
	assert.Empty(t, fast.requests[0].System)
}

func TestRouter_UnknownRoleIsNotRerouted(t *testing.T) {
	roles := roleMap{
		"assistant": {ID: "assistant", SystemPrompt: "Be helpful."},
	}
	router, fast, smart := newTestRouter(roles)

	_, err := router.CallAgent(context.Background(), "ghost", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound(core.CodeRoleNotFound, "", "")))
	assert.Empty(t, fast.requests)
	assert.Empty(t, smart.requests)
}

func TestRouter_UnknownProvider(t *testing.T) {
	roles := roleMap{"critic": {ID: "critic", Provider: "ghost"}}
	router, _, _ := newTestRouter(roles)

	_, err := router.CallAgent(context.Background(), "critic", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound(core.CodeProviderNotFound, "", "")))
}

type brokenLookup struct{}

func (brokenLookup) GetRole(context.Context, string) (*core.Role, error) {
	return nil, errors.New("database is locked")
}

func TestRouter_LookupErrorPropagates(t *testing.T) {
	router, fast, _ := newTestRouter(brokenLookup{})

	_, err := router.CallAgent(context.Background(), "critic", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Empty(t, fast.requests)
}

func TestRouter_ProviderErrorReturned(t *testing.T) {
	router, fast, _ := newTestRouter(nil)
	fast.err = core.ErrRateLimit("too many requests")

	_, err := router.CallAgent(context.Background(), "any", "x")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatRateLimit))
}

func TestRegistry_ConfigureAndGet(t *testing.T) {
	reg := NewRegistry(nil)

	err := reg.Configure(ProviderConfig{Name: "weird", Type: "carrier-pigeon"})
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))

	_, err = reg.Get("missing")
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))

	require.NoError(t, reg.Configure(ProviderConfig{Name: "dry", Type: "echo"}))
	first, err := reg.Get("dry")
	require.NoError(t, err)
	second, err := reg.Get("dry")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "dry", first.Name())
}

func TestConfigureFromConfig(t *testing.T) {
	t.Setenv("ROLECHAIN_AGENT_TEST_KEY", "k-123")
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"echo":   {Type: "echo"},
			"openai": {Type: "openai", Model: "gpt", APIKeyEnv: "ROLECHAIN_AGENT_TEST_KEY", Timeout: "30s"},
		},
	}
	reg := NewRegistry(nil)
	require.NoError(t, ConfigureFromConfig(reg, cfg))
	assert.Equal(t, []string{"echo", "openai"}, reg.List())

	p, err := reg.Get("openai")
	require.NoError(t, err)
	client, ok := p.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, "k-123", client.cfg.APIKey)
	assert.Equal(t, defaultOpenAIBaseURL, client.baseURL)

	bad := &config.Config{Providers: map[string]config.ProviderConfig{"x": {Type: "smoke"}}}
	assert.Error(t, ConfigureFromConfig(NewRegistry(nil), bad))
}
