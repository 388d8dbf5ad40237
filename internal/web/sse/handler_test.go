package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/rolechain/internal/events"
)

// connect opens a stream and consumes the connected event. The handler
// subscribes before sending it, so events published afterwards are seen.
func connect(t *testing.T, ts *httptest.Server, query string) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+query, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected Content-Type text/event-stream, got %s", ct)
	}

	reader := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, reader)
	if name != "connected" {
		t.Fatalf("expected connected event, got %q", name)
	}
	return reader
}

// readEvent returns the next event name and its decoded data, skipping comments.
func readEvent(t *testing.T, r *bufio.Reader) (string, map[string]interface{}) {
	t.Helper()
	var name string
	var data map[string]interface{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err != nil {
				t.Fatalf("decoding data: %v", err)
			}
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestHandler_StreamsTaskEvents(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()

	h := NewHandler(bus)
	h.SetHeartbeatFrequency(10 * time.Second)
	ts := httptest.NewServer(h)
	defer ts.Close()

	reader := connect(t, ts, "")
	bus.Publish(events.NewTaskLogEvent("task-1", 2, "info", "step \"edit\" completed by editor"))

	name, data := readEvent(t, reader)
	if name != events.TypeTaskLog {
		t.Fatalf("expected %s, got %s", events.TypeTaskLog, name)
	}
	if data["task_id"] != "task-1" {
		t.Errorf("expected task_id task-1, got %v", data["task_id"])
	}
	if data["step"] != float64(2) {
		t.Errorf("expected step 2, got %v", data["step"])
	}
}

func TestHandler_FiltersTask(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()

	h := NewHandler(bus)
	h.SetHeartbeatFrequency(10 * time.Second)
	ts := httptest.NewServer(h)
	defer ts.Close()

	reader := connect(t, ts, "?task=task-2")
	bus.Publish(events.NewTaskLogEvent("task-1", 0, "info", "other"))
	bus.Publish(events.NewTaskLogEvent("task-2", 0, "info", "mine"))

	_, data := readEvent(t, reader)
	if data["task_id"] != "task-2" || data["message"] != "mine" {
		t.Errorf("expected only task-2 events, got %v", data)
	}
}

func TestHandler_FiltersTypes(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()

	h := NewHandler(bus)
	h.SetHeartbeatFrequency(10 * time.Second)
	ts := httptest.NewServer(h)
	defer ts.Close()

	reader := connect(t, ts, "?types=task_error")
	bus.Publish(events.NewTaskLogEvent("task-1", 0, "info", "noise"))
	bus.Publish(events.NewTaskErrorEvent("task-1", context.DeadlineExceeded))

	name, data := readEvent(t, reader)
	if name != events.TypeTaskError {
		t.Fatalf("expected %s, got %s", events.TypeTaskError, name)
	}
	if data["error"] != context.DeadlineExceeded.Error() {
		t.Errorf("unexpected error payload %v", data["error"])
	}
}

func TestHandler_Heartbeat(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()

	h := NewHandler(bus)
	h.SetHeartbeatFrequency(50 * time.Millisecond)
	ts := httptest.NewServer(h)
	defer ts.Close()

	reader := connect(t, ts, "")
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading heartbeat: %v", err)
	}
	if !strings.HasPrefix(line, ": heartbeat") {
		t.Errorf("expected heartbeat comment, got %q", line)
	}
}

func TestHandler_ShutdownDisconnectsClients(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()

	h := NewHandler(bus)
	h.SetHeartbeatFrequency(10 * time.Second)
	ts := httptest.NewServer(h)
	defer ts.Close()

	for i := 0; i < 3; i++ {
		connect(t, ts, "")
	}
	if h.ClientCount() != 3 {
		t.Errorf("expected 3 clients, got %d", h.ClientCount())
	}

	if err := h.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown error: %v", err)
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients after shutdown, got %d", h.ClientCount())
	}
}

func TestParseTypes(t *testing.T) {
	got := parseTypes(" task_log, ,task_update ")
	if len(got) != 2 || got[0] != "task_log" || got[1] != "task_update" {
		t.Errorf("parseTypes() = %v", got)
	}
	if parseTypes("") != nil {
		t.Error("parseTypes(\"\") should be nil")
	}
}
