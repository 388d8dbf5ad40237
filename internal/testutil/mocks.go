package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

// MockCaller implements core.AgentCaller for testing. Unless configured
// otherwise it answers "out-" followed by the role id.
type MockCaller struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	callFunc  func(ctx context.Context, roleID, prompt string) (string, error)
	calls     []MockCall
}

// MockCall records a call to the mock.
type MockCall struct {
	Role      string
	Prompt    string
	Timestamp time.Time
}

// NewMockCaller creates a new mock caller.
func NewMockCaller() *MockCaller {
	return &MockCaller{
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

// CallAgent records the call and returns the configured answer.
func (m *MockCaller) CallAgent(ctx context.Context, roleID, prompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Role: roleID, Prompt: prompt, Timestamp: time.Now()})
	fn := m.callFunc
	out, hasOut := m.responses[roleID]
	err := m.errs[roleID]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, roleID, prompt)
	}
	if err != nil {
		return "", err
	}
	if hasOut {
		return out, nil
	}
	return "out-" + roleID, nil
}

// WithResponse sets the answer for a role.
func (m *MockCaller) WithResponse(roleID, output string) *MockCaller {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[roleID] = output
	return m
}

// WithError makes calls for a role fail.
func (m *MockCaller) WithError(roleID string, err error) *MockCaller {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[roleID] = err
	return m
}

// WithCallFunc replaces the canned answers with fn.
func (m *MockCaller) WithCallFunc(fn func(ctx context.Context, roleID, prompt string) (string, error)) *MockCaller {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callFunc = fn
	return m
}

// Calls returns a copy of the recorded calls.
func (m *MockCaller) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// Roles returns the role ids called, in order.
func (m *MockCaller) Roles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	roles := make([]string, len(m.calls))
	for i, c := range m.calls {
		roles[i] = c.Role
	}
	return roles
}

// CallCount returns how many calls targeted roleID.
func (m *MockCaller) CallCount(roleID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Role == roleID {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (m *MockCaller) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var _ core.AgentCaller = (*MockCaller)(nil)
