// Package engine runs the steps of a task record one at a time, feeding each
// agent call the context accumulated by the steps before it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/logging"
	"github.com/hugo-lorenzo-mato/rolechain/internal/metrics"
	"github.com/hugo-lorenzo-mato/rolechain/internal/prompt"
)

// DefaultStepDelay is the pause between consecutive steps.
const DefaultStepDelay = time.Second

// Engine executes task records sequentially. One engine runs one task at a
// time; Pause and Stop may be called from any goroutine.
type Engine struct {
	caller      core.AgentCaller
	logger      *logging.Logger
	metrics     *metrics.Metrics
	stepDelay   time.Duration
	stepTimeout time.Duration

	control *control
	busy    atomic.Bool

	mu        sync.RWMutex
	listeners map[EventKind][]Listener
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithStepDelay sets the wait between steps. Zero disables it.
func WithStepDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.stepDelay = d
		}
	}
}

// WithStepTimeout bounds each agent call. Zero means no bound.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.stepTimeout = d
		}
	}
}

// New creates an engine that calls agents through caller.
func New(caller core.AgentCaller, opts ...Option) *Engine {
	e := &Engine{
		caller:    caller,
		logger:    logging.NewNop(),
		stepDelay: DefaultStepDelay,
		control:   newControl(),
		listeners: make(map[EventKind][]Listener),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// On registers a listener for kind. Listeners of a kind are called in
// registration order.
func (e *Engine) On(kind EventKind, l Listener) error {
	if _, err := ParseEventKind(string(kind)); err != nil {
		return err
	}
	if l == nil {
		return core.ErrValidation("NIL_LISTENER", "listener cannot be nil")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[kind] = append(e.listeners[kind], l)
	return nil
}

// Pause asks the active run to halt before its next step. The step in flight
// completes and is recorded. It is a no-op when nothing is running.
func (e *Engine) Pause() {
	if e.control.pause() {
		e.logger.Debug("pause requested")
	}
}

// Stop asks the active run to end. The context of an agent call in flight is
// cancelled and its result discarded.
func (e *Engine) Stop() {
	if e.control.stop() {
		e.logger.Debug("stop requested")
	}
}

// Arm marks the engine running ahead of a Run that will be started on another
// goroutine, so Pause and Stop calls made in between take effect at the first
// step. It is a no-op while a run is in progress.
func (e *Engine) Arm() {
	if e.busy.Load() {
		return
	}
	e.control.arm()
}

// Status returns the control flag.
func (e *Engine) Status() State {
	return e.control.load()
}

// Busy reports whether a run is in progress.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// Run executes task from its CurrentStep to the end, mutating it in place.
// It returns nil when the run completes, pauses or is stopped, ctx.Err() when
// ctx ends the run, and an error when the engine is misused or faults.
func (e *Engine) Run(ctx context.Context, task *core.TaskRecord) (err error) {
	if task == nil {
		return core.ErrValidation(core.CodeInvalidState, "task record is required")
	}
	if !e.busy.CompareAndSwap(false, true) {
		return core.ErrState(core.CodeEngineBusy, "engine is already running a task")
	}
	defer e.busy.Store(false)

	switch task.Status {
	case core.TaskStatusCompleted:
		e.control.finish(StateIdle)
		return core.ErrState(core.CodeInvalidState, fmt.Sprintf("task %s already completed", task.ID))
	case core.TaskStatusRunning:
		e.control.finish(StateIdle)
		return core.ErrState(core.CodeInvalidState, fmt.Sprintf("task %s is marked running", task.ID))
	}

	log := e.logger.WithTask(string(task.ID))
	e.control.start()
	e.metrics.RunStarted()
	defer func() {
		e.metrics.RunFinished(string(task.Status))
	}()
	defer func() {
		if r := recover(); r != nil {
			e.control.finish(StateIdle)
			err = e.fault(log, task, core.ErrInternal(core.CodeEngineFault, fmt.Sprintf("panic during run: %v", r)))
		}
	}()

	if verr := task.Validate(); verr != nil {
		e.control.finish(StateIdle)
		return e.fault(log, task, core.ErrInternal(core.CodeEngineFault, "invalid task record").WithCause(verr))
	}
	ectx, rerr := core.RestoreExecutionContext(task.Input, task.Results, task.CurrentStep)
	if rerr != nil {
		e.control.finish(StateIdle)
		return e.fault(log, task, rerr)
	}

	task.Error = ""
	if task.CurrentStep > 0 {
		e.emitLog(log, task, task.CurrentStep, LevelInfo,
			fmt.Sprintf("resuming at step %d of %d", task.CurrentStep+1, len(task.Steps)))
	} else {
		e.emitLog(log, task, 0, LevelInfo, fmt.Sprintf("starting run of %d steps", len(task.Steps)))
	}

	last := len(task.Steps) - 1
	for i := task.CurrentStep; i <= last; i++ {
		if done, cerr := e.checkpoint(ctx, log, task, i); done {
			return cerr
		}

		step := task.Steps[i]
		task.CurrentStep = i
		task.RecomputeProgress()
		task.Status = core.TaskStatusRunning
		touch(task)
		e.emitUpdate(task)

		text := prompt.Build(step, ectx)
		started := time.Now()
		result, callErr := e.call(ctx, step.Role, text)
		elapsed := time.Since(started)

		if ctx.Err() != nil || e.control.load() == StateIdle {
			e.metrics.StepFinished(metrics.OutcomeDropped, elapsed)
			e.control.finish(StateIdle)
			task.Status = core.TaskStatusIdle
			touch(task)
			e.emitLog(log, task, i, LevelWarn, fmt.Sprintf("run stopped during step %q, result discarded", step.Name))
			return ctx.Err()
		}

		if callErr != nil {
			sentinel := FailureSentinel(callErr)
			ectx.Append(sentinel)
			task.SetResult(i, sentinel)
			touch(task)
			e.metrics.StepFinished(metrics.OutcomeFailed, elapsed)
			e.emitLog(log, task, i, LevelWarn, fmt.Sprintf("step %q failed: %v", step.Name, callErr))
		} else {
			ectx.Append(result)
			task.SetResult(i, result)
			cost := utf8.RuneCountInString(text) + utf8.RuneCountInString(result)
			task.TokenCost += cost
			touch(task)
			e.metrics.StepFinished(metrics.OutcomeSuccess, elapsed)
			e.metrics.AddTokenCost(cost)
			e.emitLog(log, task, i, LevelInfo, fmt.Sprintf("step %q completed by %s", step.Name, step.Role))
		}

		if i < last {
			e.wait(ctx)
		}
	}

	e.control.finish(StateIdle)
	task.Status = core.TaskStatusCompleted
	task.Progress = 100
	touch(task)
	e.emitLog(log, task, last, LevelInfo, "run completed")
	e.emitUpdate(task)
	return nil
}

// checkpoint observes pause, stop and cancellation before step i.
func (e *Engine) checkpoint(ctx context.Context, log *logging.Logger, task *core.TaskRecord, i int) (bool, error) {
	if err := ctx.Err(); err != nil {
		e.control.finish(StateIdle)
		task.Status = core.TaskStatusIdle
		touch(task)
		e.emitLog(log, task, i, LevelWarn, fmt.Sprintf("run cancelled before step %d: %v", i+1, err))
		return true, err
	}

	switch e.control.load() {
	case StatePaused:
		task.CurrentStep = i
		task.RecomputeProgress()
		task.Status = core.TaskStatusPaused
		touch(task)
		e.emitLog(log, task, i, LevelInfo, fmt.Sprintf("paused before step %d of %d", i+1, len(task.Steps)))
		e.emitUpdate(task)
		return true, nil
	case StateIdle:
		task.Status = core.TaskStatusIdle
		touch(task)
		e.emitLog(log, task, i, LevelInfo, fmt.Sprintf("stopped before step %d of %d", i+1, len(task.Steps)))
		return true, nil
	}
	return false, nil
}

func (e *Engine) call(ctx context.Context, role, text string) (string, error) {
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if e.stepTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.stepTimeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: core.ErrExecution(core.CodeAgentFailed, fmt.Sprintf("agent panicked: %v", r))}
			}
		}()
		res, err := e.caller.CallAgent(callCtx, role, text)
		done <- outcome{result: res, err: err}
	}()

	wake := e.control.wakeup()
	for {
		select {
		case out := <-done:
			if out.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return "", core.ErrTimeout(fmt.Sprintf("step timed out after %s", e.stepTimeout)).WithCause(out.err)
			}
			return out.result, out.err
		case <-callCtx.Done():
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", core.ErrTimeout(fmt.Sprintf("step timed out after %s", e.stepTimeout))
		case <-wake:
			if e.control.load() == StateIdle {
				return "", core.ErrState(core.CodeInvalidState, "stopped")
			}
			// A pause lets the call finish.
			wake = nil
		}
	}
}

// wait sleeps stepDelay unless ctx ends or a pause or stop arrives.
func (e *Engine) wait(ctx context.Context) {
	if e.stepDelay <= 0 {
		return
	}
	timer := time.NewTimer(e.stepDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-e.control.wakeup():
	}
}

func (e *Engine) fault(log *logging.Logger, task *core.TaskRecord, err error) error {
	task.Status = core.TaskStatusError
	task.Error = err.Error()
	touch(task)
	log.Error("engine fault", "error", err)
	e.emit(Event{
		Kind:    EventError,
		TaskID:  task.ID,
		Time:    time.Now(),
		Step:    task.CurrentStep,
		Level:   LevelError,
		Message: err.Error(),
		Task:    task.Clone(),
		Err:     err,
	}, true)
	return err
}

func (e *Engine) emitLog(log *logging.Logger, task *core.TaskRecord, i int, level Level, msg string) {
	ev := Event{
		Kind:    EventLog,
		TaskID:  task.ID,
		Time:    time.Now(),
		Step:    i,
		Level:   level,
		Message: msg,
	}
	if i >= 0 && i < len(task.Steps) {
		ev.StepName = task.Steps[i].Name
		ev.Role = task.Steps[i].Role
	}
	switch level {
	case LevelWarn:
		log.Warn(msg, "step", i)
	case LevelError:
		log.Error(msg, "step", i)
	default:
		log.Info(msg, "step", i)
	}
	e.emit(ev, false)
}

func (e *Engine) emitUpdate(task *core.TaskRecord) {
	e.emit(Event{
		Kind:   EventUpdate,
		TaskID: task.ID,
		Time:   time.Now(),
		Step:   task.CurrentStep,
		Task:   task.Clone(),
	}, false)
}

// emit calls listeners in order. Panicking listeners are only contained while
// reporting a fault; otherwise the panic reaches Run's recovery.
func (e *Engine) emit(ev Event, contain bool) {
	e.mu.RLock()
	ls := append([]Listener(nil), e.listeners[ev.Kind]...)
	e.mu.RUnlock()
	for _, l := range ls {
		if contain {
			e.safeCall(l, ev)
			continue
		}
		l(ev)
	}
}

func (e *Engine) safeCall(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("error listener panicked", "panic", r)
		}
	}()
	l(ev)
}

// FailureSentinel is the result recorded for a step whose agent call failed.
func FailureSentinel(err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return "(execution failed: " + msg + ")"
}

func touch(task *core.TaskRecord) {
	task.UpdatedAt = time.Now()
}
