package engine

import (
	"sync"
	"sync/atomic"
)

// State is the engine control flag.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// control holds the flag the run loop polls between steps. Requests never
// block; the wake channel lets a pending inter-step delay end early.
type control struct {
	mu     sync.Mutex
	state  atomic.Int32
	wakeCh chan struct{}
	woken  bool
	armed  bool
}

func newControl() *control {
	return &control{wakeCh: make(chan struct{})}
}

func (c *control) load() State {
	return State(c.state.Load())
}

// arm sets the flag to running ahead of the run loop so that pause and stop
// requests made before the loop starts are kept.
func (c *control) arm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	c.armed = true
}

// start arms the flag for a new run. A flag armed earlier is left as is,
// including any pause or stop recorded since.
func (c *control) start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.armed {
		c.armed = false
		return
	}
	c.reset()
}

// reset must be called with mu held.
func (c *control) reset() {
	c.state.Store(int32(StateRunning))
	c.wakeCh = make(chan struct{})
	c.woken = false
}

// pause requests a pause. It only applies to an active run.
func (c *control) pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.load() != StateRunning {
		return false
	}
	c.state.Store(int32(StatePaused))
	c.wake()
	return true
}

// stop requests a stop. A paused engine also returns to idle.
func (c *control) stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.load() == StateIdle {
		return false
	}
	c.state.Store(int32(StateIdle))
	c.wake()
	return true
}

// finish leaves the flag at s once the run loop returns.
func (c *control) finish(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = false
	c.state.Store(int32(s))
}

// wakeup returns a channel closed by the next pause or stop request.
func (c *control) wakeup() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wakeCh
}

// wake must be called with mu held.
func (c *control) wake() {
	if !c.woken {
		close(c.wakeCh)
		c.woken = true
	}
}
