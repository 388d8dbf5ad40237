// Package service runs task records on behalf of the API and CLI: it creates
// them from templates, supervises one engine per active run, persists
// snapshots and republishes engine events on the event bus.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/engine"
	"github.com/hugo-lorenzo-mato/rolechain/internal/events"
	"github.com/hugo-lorenzo-mato/rolechain/internal/logging"
	"github.com/hugo-lorenzo-mato/rolechain/internal/metrics"
)

// CodeManagerClosed is returned once Shutdown has begun.
const CodeManagerClosed = "MANAGER_CLOSED"

// Manager tracks active runs. Each active task has its own engine so runs
// never share a control flag.
type Manager struct {
	store  core.Store
	caller core.AgentCaller
	bus    *events.EventBus
	logger *logging.Logger

	metrics      *metrics.Metrics
	stepDelay    time.Duration
	stepTimeout  time.Duration
	fallbackRole string

	group  errgroup.Group
	mu     sync.Mutex
	runs   map[core.TaskID]*activeRun
	closed bool
}

type activeRun struct {
	engine *engine.Engine
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the metrics passed to every engine.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithStepDelay sets the engine step delay.
func WithStepDelay(d time.Duration) Option {
	return func(m *Manager) { m.stepDelay = d }
}

// WithStepTimeout sets the engine step timeout.
func WithStepTimeout(d time.Duration) Option {
	return func(m *Manager) { m.stepTimeout = d }
}

// WithFallbackRole sets the role used for bare labels with no catalog role.
func WithFallbackRole(role string) Option {
	return func(m *Manager) {
		if role != "" {
			m.fallbackRole = role
		}
	}
}

// WithMaxRuns caps concurrent runs. Zero or less means no cap.
func WithMaxRuns(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.group.SetLimit(n)
		}
	}
}

// NewManager creates a run manager. bus may be nil.
func NewManager(store core.Store, caller core.AgentCaller, bus *events.EventBus, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		caller:       caller,
		bus:          bus,
		logger:       logging.NewNop(),
		stepDelay:    engine.DefaultStepDelay,
		fallbackRole: core.DefaultFallbackRole,
		runs:         make(map[core.TaskID]*activeRun),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Recover marks tasks left running by a previous process as paused so they
// can be resumed from their cursor. It returns how many were changed.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	tasks, err := m.store.ListTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing tasks: %w", err)
	}
	n := 0
	for _, t := range tasks {
		if t.Status != core.TaskStatusRunning || m.Active(t.ID) {
			continue
		}
		if t.CurrentStep > len(t.Results) {
			t.CurrentStep = len(t.Results)
		}
		t.Status = core.TaskStatusPaused
		t.RecomputeProgress()
		t.UpdatedAt = time.Now()
		if err := m.store.SaveTask(ctx, t); err != nil {
			return n, fmt.Errorf("saving recovered task %s: %w", t.ID, err)
		}
		m.logger.Warn("recovered interrupted task", "task_id", t.ID, "step", t.CurrentStep)
		n++
	}
	return n, nil
}

// Start creates a task record from templateID and starts running it.
func (m *Manager) Start(ctx context.Context, templateID, input string) (*core.TaskRecord, error) {
	tmpl, err := m.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	task, err := core.NewTaskRecord(core.TaskID(uuid.NewString()), tmpl, input, storeResolver{ctx: ctx, store: m.store}, m.fallbackRole)
	if err != nil {
		return nil, err
	}
	if err := m.store.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("saving task: %w", err)
	}
	snapshot := task.Clone()
	if err := m.launch(task); err != nil {
		return nil, err
	}
	m.logger.Info("task started", "task_id", snapshot.ID, "template_id", templateID, "steps", len(snapshot.Steps))
	return snapshot, nil
}

// Resume continues a stored task from its cursor.
func (m *Manager) Resume(ctx context.Context, id core.TaskID) (*core.TaskRecord, error) {
	if m.Active(id) {
		return nil, core.ErrState(core.CodeTaskActive, fmt.Sprintf("task %s is already running", id))
	}
	task, err := m.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.Resumable() {
		return nil, core.ErrState(core.CodeInvalidState, fmt.Sprintf("task %s is %s", id, task.Status))
	}
	snapshot := task.Clone()
	if err := m.launch(task); err != nil {
		return nil, err
	}
	m.logger.Info("task resumed", "task_id", id, "step", snapshot.CurrentStep)
	return snapshot, nil
}

// Pause asks an active run to halt before its next step.
func (m *Manager) Pause(id core.TaskID) error {
	r, err := m.active(id)
	if err != nil {
		return err
	}
	r.engine.Pause()
	return nil
}

// Stop ends an active run, discarding a step in flight.
func (m *Manager) Stop(id core.TaskID) error {
	r, err := m.active(id)
	if err != nil {
		return err
	}
	r.engine.Stop()
	return nil
}

// Get returns the stored task record.
func (m *Manager) Get(ctx context.Context, id core.TaskID) (*core.TaskRecord, error) {
	return m.store.GetTask(ctx, id)
}

// List returns every stored task record, newest first.
func (m *Manager) List(ctx context.Context) ([]*core.TaskRecord, error) {
	return m.store.ListTasks(ctx)
}

// Delete removes a task that is not running.
func (m *Manager) Delete(ctx context.Context, id core.TaskID) error {
	if m.Active(id) {
		return core.ErrState(core.CodeTaskActive, fmt.Sprintf("task %s is running", id))
	}
	return m.store.DeleteTask(ctx, id)
}

// Active reports whether id has a run in progress.
func (m *Manager) Active(id core.TaskID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runs[id]
	return ok
}

// Wait blocks until the run of id ends or ctx is done. It returns
// immediately when id is not active.
func (m *Manager) Wait(ctx context.Context, id core.TaskID) error {
	m.mu.Lock()
	r, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops every active run and waits for them to persist.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, r := range m.runs {
		r.engine.Stop()
		r.cancel()
	}
	m.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- m.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for runs: %w", ctx.Err())
	}
}

func (m *Manager) active(id core.TaskID) (*activeRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, core.ErrState(core.CodeInvalidState, fmt.Sprintf("task %s is not running", id))
	}
	return r, nil
}

// launch hands task to a new engine goroutine. The caller must not touch
// task afterwards.
func (m *Manager) launch(task *core.TaskRecord) error {
	eng := engine.New(m.caller,
		engine.WithLogger(m.logger),
		engine.WithMetrics(m.metrics),
		engine.WithStepDelay(m.stepDelay),
		engine.WithStepTimeout(m.stepTimeout),
	)
	m.forward(eng)

	ctx, cancel := context.WithCancel(context.Background())
	r := &activeRun{engine: eng, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		cancel()
		return core.ErrState(CodeManagerClosed, "run manager is shutting down")
	}
	if _, ok := m.runs[task.ID]; ok {
		cancel()
		return core.ErrState(core.CodeTaskActive, fmt.Sprintf("task %s is already running", task.ID))
	}
	m.runs[task.ID] = r
	eng.Arm()
	if !m.group.TryGo(func() error { return m.execute(ctx, r, task) }) {
		delete(m.runs, task.ID)
		cancel()
		return core.ErrState(core.CodeEngineBusy, "too many active runs")
	}
	return nil
}

// execute owns task until the engine returns.
func (m *Manager) execute(ctx context.Context, r *activeRun, task *core.TaskRecord) error {
	defer close(r.done)
	defer func() {
		m.mu.Lock()
		delete(m.runs, task.ID)
		m.mu.Unlock()
	}()
	defer r.cancel()

	log := m.logger.WithTask(string(task.ID))
	err := r.engine.Run(ctx, task)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		log.Info("run ended", "status", task.Status, "step", task.CurrentStep)
	default:
		log.Error("run failed", "status", task.Status, "error", err)
	}

	if serr := m.store.SaveTask(context.WithoutCancel(ctx), task); serr != nil {
		log.Error("persisting final task state failed", "error", serr)
	}
	m.publish(events.NewTaskUpdateEvent(task.Clone()))
	// Faults are reported through events; they must not cancel sibling runs.
	return nil
}

// forward persists update snapshots and republishes engine events.
func (m *Manager) forward(eng *engine.Engine) {
	_ = eng.On(engine.EventLog, func(ev engine.Event) {
		m.publish(events.NewTaskLogEvent(string(ev.TaskID), ev.Step, string(ev.Level), ev.Message))
	})
	_ = eng.On(engine.EventUpdate, func(ev engine.Event) {
		if err := m.store.SaveTask(context.Background(), ev.Task); err != nil {
			m.logger.Error("persisting task snapshot failed", "task_id", ev.TaskID, "error", err)
		}
		m.publish(events.NewTaskUpdateEvent(ev.Task))
	})
	_ = eng.On(engine.EventError, func(ev engine.Event) {
		m.publish(events.NewTaskErrorEvent(string(ev.TaskID), ev.Err))
	})
}

func (m *Manager) publish(ev events.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

// storeResolver answers role lookups from the store while a task is created.
type storeResolver struct {
	ctx   context.Context
	store core.RoleStore
}

func (r storeResolver) HasRole(id string) bool {
	_, err := r.store.GetRole(r.ctx, id)
	return err == nil
}
