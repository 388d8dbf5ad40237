package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/service"
	"github.com/hugo-lorenzo-mato/rolechain/internal/testutil"
)

type testEnv struct {
	server  *httptest.Server
	store   core.Store
	manager *service.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := testutil.NewTestStore(t)
	manager := service.NewManager(store, testutil.NewMockCaller(), nil, service.WithStepDelay(0))
	srv := httptest.NewServer(NewServer(store, manager).Handler())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, store: store, manager: manager}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRoles_CRUD(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/roles/writer", map[string]string{"system_prompt": "You write."})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[core.Role](t, resp)
	assert.Equal(t, "writer", saved.ID)
	assert.False(t, saved.UpdatedAt.IsZero())

	resp = env.do(t, http.MethodGet, "/roles/writer", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "You write.", decode[core.Role](t, resp).SystemPrompt)

	resp = env.do(t, http.MethodGet, "/roles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]core.Role](t, resp), 1)

	resp = env.do(t, http.MethodDelete, "/roles/writer", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/roles/writer", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, core.CodeRoleNotFound, decode[errorResponse](t, resp).Code)
}

func TestRoles_PutRejectsBadBodies(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{name: "id mismatch", body: map[string]string{"id": "other"}, status: http.StatusUnprocessableEntity},
		{name: "malformed", body: "{not json", status: http.StatusBadRequest},
		{name: "unknown field", body: `{"colour":"red"}`, status: http.StatusBadRequest},
		{name: "empty", body: nil, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPut, "/roles/writer", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestTemplates_PutAcceptsMixedSteps(t *testing.T) {
	env := newTestEnv(t)

	body := `{"name":"Review","steps":["writer",{"name":"Edit","role":"editor","prompt":"Fix: {prev}"}]}`
	resp := env.do(t, http.MethodPut, "/templates/review", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/templates/review", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tmpl := decode[core.Template](t, resp)
	require.Len(t, tmpl.Steps, 2)
	assert.Equal(t, core.LabelStep("writer"), tmpl.Steps[0])
	assert.Equal(t, core.FullStep("Edit", "editor", "Fix: {prev}"), tmpl.Steps[1])

	resp = env.do(t, http.MethodPut, "/templates/empty", `{"steps":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, core.CodeEmptySteps, decode[errorResponse](t, resp).Code)
}

func TestTasks_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.SaveRole(ctx, &core.Role{ID: "writer"}))
	require.NoError(t, env.store.SaveTemplate(ctx, &core.Template{
		ID:    "review",
		Steps: []core.StepDefinition{core.LabelStep("writer"), core.LabelStep("critic")},
	}))

	resp := env.do(t, http.MethodPost, "/tasks", StartTaskRequest{TemplateID: "review", Input: "a poem"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	started := decode[TaskResponse](t, resp)
	require.NotNil(t, started.TaskRecord)
	id := started.ID

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, env.manager.Wait(waitCtx, id))

	resp = env.do(t, http.MethodGet, "/tasks/"+string(id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[TaskResponse](t, resp)
	assert.Equal(t, core.TaskStatusCompleted, got.Status)
	assert.Equal(t, "out-assistant", got.FinalOutput)
	assert.False(t, got.Active)

	resp = env.do(t, http.MethodGet, "/tasks?status=completed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]TaskResponse](t, resp), 1)

	resp = env.do(t, http.MethodGet, "/tasks?status=paused", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]TaskResponse](t, resp))

	resp = env.do(t, http.MethodGet, "/tasks?status=bogus", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/tasks/"+string(id)+"/pause", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/tasks/"+string(id)+"/resume", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/tasks/"+string(id), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/tasks/"+string(id), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTasks_StartValidation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/tasks", StartTaskRequest{Input: "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/tasks", StartTaskRequest{TemplateID: "missing"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, core.CodeTemplateNotFound, decode[errorResponse](t, resp).Code)
}

func TestHTTPStatusForDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		ok     bool
	}{
		{core.ErrValidation(core.CodeEmptySteps, "x"), http.StatusUnprocessableEntity, true},
		{core.ErrNotFound(core.CodeTaskNotFound, "task", "1"), http.StatusNotFound, true},
		{core.ErrState(core.CodeEngineBusy, "x"), http.StatusConflict, true},
		{core.ErrTimeout("x"), http.StatusGatewayTimeout, true},
		{core.ErrRateLimit("x"), http.StatusTooManyRequests, true},
		{core.ErrInternal(core.CodeEngineFault, "x"), http.StatusInternalServerError, true},
		{assert.AnError, 0, false},
	}
	for _, tt := range tests {
		status, ok := httpStatusForDomainError(tt.err)
		assert.Equal(t, tt.ok, ok, tt.err)
		assert.Equal(t, tt.status, status, tt.err)
	}
}
