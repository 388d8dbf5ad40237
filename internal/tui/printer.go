package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/engine"
)

// Printer writes engine events for one run. It is safe to use from the
// engine goroutine while the caller prints the summary.
type Printer struct {
	w     io.Writer
	mode  OutputMode
	width int

	mu  sync.Mutex
	enc *json.Encoder
}

// NewPrinter creates a printer for mode.
func NewPrinter(w io.Writer, mode OutputMode, width int) *Printer {
	if width <= 0 {
		width = 80
	}
	return &Printer{w: w, mode: mode, width: width, enc: json.NewEncoder(w)}
}

// jsonEvent is the ModeJSON line format.
type jsonEvent struct {
	Kind     string `json:"kind"`
	TaskID   string `json:"task_id"`
	Step     int    `json:"step"`
	StepName string `json:"step_name,omitempty"`
	Role     string `json:"role,omitempty"`
	Level    string `json:"level,omitempty"`
	Message  string `json:"message,omitempty"`
	Status   string `json:"status,omitempty"`
	Progress *int   `json:"progress,omitempty"`
}

// RunStarted prints the run header.
func (p *Printer) RunStarted(task *core.TaskRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.mode {
	case ModeStyled:
		fmt.Fprintln(p.w, headerStyle.Render(fmt.Sprintf("▶ %s", task.TemplateID))+" "+
			mutedStyle.Render(fmt.Sprintf("task %s, %d steps", task.ID, len(task.Steps))))
	case ModePlain:
		fmt.Fprintf(p.w, "=== %s (task %s, %d steps) ===\n", task.TemplateID, task.ID, len(task.Steps))
	}
}

// Listener returns an engine listener that prints every event.
func (p *Printer) Listener() engine.Listener {
	return p.Event
}

// Event prints one engine event.
func (p *Printer) Event(ev engine.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.mode {
	case ModeQuiet:
		return
	case ModeJSON:
		out := jsonEvent{
			Kind:     string(ev.Kind),
			TaskID:   string(ev.TaskID),
			Step:     ev.Step,
			StepName: ev.StepName,
			Role:     ev.Role,
			Level:    string(ev.Level),
			Message:  ev.Message,
		}
		if ev.Task != nil {
			out.Status = string(ev.Task.Status)
			progress := ev.Task.Progress
			out.Progress = &progress
		}
		_ = p.enc.Encode(out)
		return
	}

	switch ev.Kind {
	case engine.EventLog:
		p.printLog(ev)
	case engine.EventUpdate:
		if ev.Task == nil || ev.Task.Status != core.TaskStatusRunning {
			return
		}
		step := ev.Task.Steps[ev.Step]
		if p.mode == ModeStyled {
			fmt.Fprintf(p.w, "%s %s %s\n",
				stepStyle.Render(fmt.Sprintf("[%d/%d]", ev.Step+1, len(ev.Task.Steps))),
				step.Name,
				roleStyle.Render("as "+step.Role))
		} else {
			fmt.Fprintf(p.w, "[%d/%d] %s (role %s)\n", ev.Step+1, len(ev.Task.Steps), step.Name, step.Role)
		}
	case engine.EventError:
		if p.mode == ModeStyled {
			fmt.Fprintln(p.w, errorStyle.Render("✗ "+ev.Message))
		} else {
			fmt.Fprintf(p.w, "[ERROR] %s\n", ev.Message)
		}
	}
}

func (p *Printer) printLog(ev engine.Event) {
	if p.mode != ModeStyled {
		fmt.Fprintf(p.w, "  %-5s %s\n", strings.ToUpper(string(ev.Level)), ev.Message)
		return
	}
	style := infoStyle
	switch ev.Level {
	case engine.LevelWarn:
		style = warnStyle
	case engine.LevelError:
		style = errorStyle
	}
	fmt.Fprintf(p.w, "  %s %s\n", style.Render("•"), mutedStyle.Render(ev.Message))
}

// RunFinished prints the outcome and, for a completed task, its final
// output. With markdown set, styled output renders it through glamour.
func (p *Printer) RunFinished(task *core.TaskRecord, runErr error, markdown bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mode == ModeJSON {
		_ = p.enc.Encode(map[string]interface{}{
			"kind":         "result",
			"task_id":      task.ID,
			"status":       task.Status,
			"token_cost":   task.TokenCost,
			"final_output": task.FinalOutput(),
		})
		return
	}

	if task.Status != core.TaskStatusCompleted {
		if p.mode == ModeQuiet {
			return
		}
		msg := fmt.Sprintf("run ended %s at step %d of %d", task.Status, task.CurrentStep+1, len(task.Steps))
		if runErr != nil {
			msg += ": " + runErr.Error()
		}
		if p.mode == ModeStyled {
			fmt.Fprintln(p.w, warnStyle.Render(msg))
		} else {
			fmt.Fprintln(p.w, msg)
		}
		return
	}

	output := task.FinalOutput()
	switch p.mode {
	case ModeQuiet:
		fmt.Fprintln(p.w, output)
	case ModePlain:
		fmt.Fprintf(p.w, "--- result (%d tokens) ---\n%s\n", task.TokenCost, output)
	case ModeStyled:
		fmt.Fprintln(p.w, successStyle.Render("✓ completed")+" "+
			mutedStyle.Render(fmt.Sprintf("%d tokens", task.TokenCost)))
		if markdown {
			if rendered, err := RenderMarkdown(output, p.width); err == nil {
				fmt.Fprint(p.w, rendered)
				return
			}
		}
		fmt.Fprintln(p.w, resultStyle.Width(p.width-4).Render(output))
	}
}

// RenderMarkdown renders md for a terminal of the given width.
func RenderMarkdown(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return out, nil
}
