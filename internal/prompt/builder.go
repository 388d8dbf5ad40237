// Package prompt builds the literal text sent to an agent for a workflow step.
package prompt

import (
	"strings"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

// Markers substituted in explicit step templates.
const (
	InputMarker = "{input}"
	PrevMarker  = "{prev}"
)

// MaxPreviousChars caps the previous output inlined into the default template.
const MaxPreviousChars = 1000

// Ellipsis follows the inlined previous output in the default template.
const Ellipsis = "..."

// Build returns the prompt for step given the running context. It has no side
// effects.
//
// A step with an explicit template gets every {input} replaced by the initial
// input and every {prev} by the latest history entry, verbatim. Otherwise a
// default template is synthesized from the goal, the step name and a truncated
// copy of the latest output.
func Build(step core.Step, ectx *core.ExecutionContext) string {
	var input, prev string
	hasPrev := false
	if ectx != nil {
		input = ectx.InitialInput
		prev, hasPrev = ectx.Last()
	}

	if step.HasTemplate() {
		return strings.NewReplacer(InputMarker, input, PrevMarker, prev).Replace(step.Prompt)
	}

	var b strings.Builder
	b.WriteString("[GOAL]: ")
	b.WriteString(input)
	b.WriteString("\n[STEP]: ")
	b.WriteString(step.Name)
	if hasPrev {
		b.WriteString("\n[PREVIOUS OUTPUT]: ")
		b.WriteString(Truncate(prev, MaxPreviousChars))
		b.WriteString(Ellipsis)
	}
	return b.String()
}

// Truncate returns the first max characters (code points) of s.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
