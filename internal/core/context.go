package core

// ExecutionContext is the running state a prompt is built from.
// History holds one entry per finished step, in step order.
type ExecutionContext struct {
	InitialInput string
	History      []string
}

// NewExecutionContext creates an empty context for input.
func NewExecutionContext(input string) *ExecutionContext {
	return &ExecutionContext{InitialInput: input}
}

// RestoreExecutionContext rebuilds the context of a resumed task from its
// first n results.
func RestoreExecutionContext(input string, results []string, n int) (*ExecutionContext, error) {
	if n > len(results) {
		return nil, ErrInternal(CodeResultsGap, "results do not cover the resume cursor").
			WithDetail("current_step", n).
			WithDetail("results", len(results))
	}
	history := make([]string, n)
	copy(history, results[:n])
	return &ExecutionContext{InitialInput: input, History: history}, nil
}

// Append records the output of the step that just finished.
func (c *ExecutionContext) Append(output string) {
	c.History = append(c.History, output)
}

// Last returns the most recent history entry and whether one exists.
func (c *ExecutionContext) Last() (string, bool) {
	if len(c.History) == 0 {
		return "", false
	}
	return c.History[len(c.History)-1], true
}
