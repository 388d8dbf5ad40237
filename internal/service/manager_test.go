package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/events"
	"github.com/hugo-lorenzo-mato/rolechain/internal/testutil"
)

// gate blocks every agent call until release is closed.
type gate struct {
	started chan string
	release chan struct{}
	once    sync.Once

	mu    sync.Mutex
	roles []string
}

func newGate() *gate {
	return &gate{started: make(chan string, 16), release: make(chan struct{})}
}

func (g *gate) CallAgent(ctx context.Context, role, _ string) (string, error) {
	g.mu.Lock()
	g.roles = append(g.roles, role)
	g.mu.Unlock()
	g.started <- role
	select {
	case <-g.release:
		return "ok-" + role, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gate) open() { g.once.Do(func() { close(g.release) }) }

func (g *gate) calledRoles() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.roles...)
}

func (g *gate) waitStarted(t *testing.T) string {
	t.Helper()
	select {
	case role := <-g.started:
		return role
	case <-time.After(2 * time.Second):
		t.Fatal("agent call did not start")
		return ""
	}
}

func newTestStore(t *testing.T) core.Store {
	t.Helper()
	store := testutil.NewTestStore(t)
	testutil.SeedStore(t, store,
		[]*core.Role{testutil.NewTestRole("writer"), testutil.NewTestRole("editor")},
		[]*core.Template{testutil.NewTestTemplate("review", "writer", "critic")})
	return store
}

func waitDone(t *testing.T, m *Manager, id core.TaskID) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx, id))
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var domErr *core.DomainError
	require.True(t, errors.As(err, &domErr), "expected DomainError, got %v", err)
	assert.Equal(t, code, domErr.Code)
}

func TestManager_StartRunsToCompletion(t *testing.T) {
	store := newTestStore(t)
	bus := events.New(100)
	defer bus.Close()
	updates := bus.Subscribe(events.TypeTaskUpdate)

	g := newGate()
	g.open()
	m := NewManager(store, g, bus, WithStepDelay(0))

	task, err := m.Start(context.Background(), "review", "a poem")
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, core.TaskStatusIdle, task.Status)
	waitDone(t, m, task.ID)

	got, err := m.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusCompleted, got.Status)
	assert.Equal(t, []string{"ok-writer", "ok-assistant"}, got.Results)
	assert.Equal(t, 100, got.Progress)
	assert.False(t, m.Active(task.ID))

	// Known label keeps its role; unknown label falls back.
	assert.Equal(t, []string{"writer", "assistant"}, g.calledRoles())

	var last *core.TaskRecord
	for {
		select {
		case ev := <-updates:
			last = ev.(events.TaskUpdateEvent).Task
			continue
		default:
		}
		break
	}
	require.NotNil(t, last)
	assert.Equal(t, core.TaskStatusCompleted, last.Status)
}

func TestManager_StartUnknownTemplate(t *testing.T) {
	m := NewManager(newTestStore(t), newGate(), nil)
	_, err := m.Start(context.Background(), "missing", "x")
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestManager_StartRejectsUnknownStructuredRole(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveTemplate(context.Background(), &core.Template{
		ID:    "polish",
		Name:  "Polish",
		Steps: []core.StepDefinition{core.LabelStep("writer"), core.FullStep("Polish", "ghost", "")},
	}))
	g := newGate()
	m := NewManager(store, g, nil, WithStepDelay(0))

	_, err := m.Start(context.Background(), "polish", "x")
	requireCode(t, err, core.CodeMissingRole)
	assert.Empty(t, g.calledRoles())
}

func TestManager_PauseAndResume(t *testing.T) {
	store := newTestStore(t)
	g := newGate()
	m := NewManager(store, g, nil, WithStepDelay(0))

	task, err := m.Start(context.Background(), "review", "x")
	require.NoError(t, err)
	g.waitStarted(t)
	require.NoError(t, m.Pause(task.ID))
	g.open()
	waitDone(t, m, task.ID)

	paused, err := m.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusPaused, paused.Status)
	assert.Equal(t, 1, paused.CurrentStep)
	assert.Equal(t, 50, paused.Progress)
	assert.Equal(t, []string{"ok-writer"}, paused.Results)

	_, err = m.Resume(context.Background(), task.ID)
	require.NoError(t, err)
	waitDone(t, m, task.ID)

	done, err := m.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusCompleted, done.Status)
	assert.Equal(t, []string{"ok-writer", "ok-assistant"}, done.Results)
}

func TestManager_StopDiscardsStepInFlight(t *testing.T) {
	g := newGate()
	m := NewManager(newTestStore(t), g, nil, WithStepDelay(0))

	task, err := m.Start(context.Background(), "review", "x")
	require.NoError(t, err)
	g.waitStarted(t)
	require.NoError(t, m.Stop(task.ID))
	waitDone(t, m, task.ID)

	got, err := m.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusIdle, got.Status)
	assert.Empty(t, got.Results)
	assert.Equal(t, 0, got.CurrentStep)
}

func TestManager_PauseRightAfterStart(t *testing.T) {
	g := newGate()
	defer g.open()
	m := NewManager(newTestStore(t), g, nil, WithStepDelay(0))

	task, err := m.Start(context.Background(), "review", "x")
	require.NoError(t, err)
	require.NoError(t, m.Pause(task.ID))
	g.open()
	waitDone(t, m, task.ID)

	got, err := m.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusPaused, got.Status)
	assert.LessOrEqual(t, got.CurrentStep, 1)
	assert.LessOrEqual(t, len(got.Results), 1)
}

func TestManager_StopRightAfterStart(t *testing.T) {
	g := newGate()
	defer g.open()
	m := NewManager(newTestStore(t), g, nil, WithStepDelay(0))

	task, err := m.Start(context.Background(), "review", "x")
	require.NoError(t, err)
	require.NoError(t, m.Stop(task.ID))
	waitDone(t, m, task.ID)

	got, err := m.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusIdle, got.Status)
	assert.Empty(t, got.Results)
	assert.Equal(t, 0, got.CurrentStep)
}

func TestManager_ControlRequiresActiveRun(t *testing.T) {
	m := NewManager(newTestStore(t), newGate(), nil)
	requireCode(t, m.Pause("nope"), core.CodeInvalidState)
	requireCode(t, m.Stop("nope"), core.CodeInvalidState)
}

func TestManager_ResumeRejectsCompleted(t *testing.T) {
	g := newGate()
	g.open()
	m := NewManager(newTestStore(t), g, nil, WithStepDelay(0))

	task, err := m.Start(context.Background(), "review", "x")
	require.NoError(t, err)
	waitDone(t, m, task.ID)

	_, err = m.Resume(context.Background(), task.ID)
	requireCode(t, err, core.CodeInvalidState)
}

func TestManager_DeleteRejectsActiveTask(t *testing.T) {
	g := newGate()
	m := NewManager(newTestStore(t), g, nil, WithStepDelay(0))

	task, err := m.Start(context.Background(), "review", "x")
	require.NoError(t, err)
	g.waitStarted(t)

	requireCode(t, m.Delete(context.Background(), task.ID), core.CodeTaskActive)
	_, err = m.Resume(context.Background(), task.ID)
	requireCode(t, err, core.CodeTaskActive)

	g.open()
	waitDone(t, m, task.ID)
	require.NoError(t, m.Delete(context.Background(), task.ID))
	_, err = m.Get(context.Background(), task.ID)
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestManager_RecoverMarksRunningAsPaused(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	crashed := &core.TaskRecord{
		ID:          "crashed",
		Input:       "x",
		Steps:       []core.Step{{Name: "a", Role: "writer"}, {Name: "b", Role: "editor"}, {Name: "c", Role: "editor"}},
		CurrentStep: 1,
		Results:     []string{"done"},
		Status:      core.TaskStatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, store.SaveTask(ctx, crashed))

	m := NewManager(store, newGate(), nil)
	n, err := m.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetTask(ctx, "crashed")
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusPaused, got.Status)
	assert.Equal(t, 1, got.CurrentStep)
	assert.Equal(t, 33, got.Progress)
}

func TestManager_MaxRuns(t *testing.T) {
	g := newGate()
	m := NewManager(newTestStore(t), g, nil, WithStepDelay(0), WithMaxRuns(1))

	first, err := m.Start(context.Background(), "review", "x")
	require.NoError(t, err)
	g.waitStarted(t)

	_, err = m.Start(context.Background(), "review", "y")
	requireCode(t, err, core.CodeEngineBusy)

	g.open()
	waitDone(t, m, first.ID)
}

func TestManager_ShutdownStopsRuns(t *testing.T) {
	g := newGate()
	m := NewManager(newTestStore(t), g, nil, WithStepDelay(0))

	task, err := m.Start(context.Background(), "review", "x")
	require.NoError(t, err)
	g.waitStarted(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.False(t, m.Active(task.ID))

	got, err := m.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusIdle, got.Status)

	_, err = m.Start(context.Background(), "review", "x")
	requireCode(t, err, CodeManagerClosed)
}
