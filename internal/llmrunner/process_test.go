package llmrunner

import (
	"context"
	"testing"
)

func TestNewProcessRunner(t *testing.T) {
	ctx := context.Background()
	r := NewProcessRunner(ctx, ProcessConfig{Binary: "claude"})

	if r == nil {
		t.Fatal("NewProcessRunner returned nil")
	}
	if r.outputCh == nil {
		t.Error("outputCh should not be nil")
	}
	if r.done == nil {
		t.Error("done channel should not be nil")
	}
	if r.started {
		t.Error("runner should not be started initially")
	}
}

func TestProcessRunner_WaitWithoutStart(t *testing.T) {
	r := NewProcessRunner(context.Background(), ProcessConfig{Binary: "claude"})

	err := r.Wait()
	if err == nil {
		t.Error("Wait should return error when runner not started")
	}
}

func TestProcessRunner_KillWithoutStart(t *testing.T) {
	r := NewProcessRunner(context.Background(), ProcessConfig{Binary: "claude"})

	if err := r.Kill(); err != nil {
		t.Errorf("Kill without start should not error, got: %v", err)
	}
}

func TestParseStreamEvent(t *testing.T) {
	cases := []struct {
		name string
		line string
		want StreamEventType
	}{
		{"system", `{"type":"system"}`, StreamEventSystem},
		{"assistant text", `{"type":"assistant","message":"hi"}`, StreamEventAssistant},
		{"result", `{"type":"result","result":"done"}`, StreamEventResult},
		{"error", `{"type":"error","error":"boom"}`, StreamEventError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := parseStreamEvent([]byte(tc.line))
			if err != nil {
				t.Fatalf("parseStreamEvent: %v", err)
			}
			if ev.Type != tc.want {
				t.Errorf("Type = %q, want %q", ev.Type, tc.want)
			}
		})
	}
}

func TestParseStreamEvent_ToolUse(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read","input":{"file_path":"main.go"}}]}}`
	ev, err := parseStreamEvent([]byte(line))
	if err != nil {
		t.Fatalf("parseStreamEvent: %v", err)
	}
	if ev.ToolAction != "Reading main.go" {
		t.Errorf("ToolAction = %q, want %q", ev.ToolAction, "Reading main.go")
	}
}

func TestParseStreamEvent_InvalidJSON(t *testing.T) {
	_, err := parseStreamEvent([]byte("not json"))
	if err == nil {
		t.Error("expected error parsing invalid json")
	}
}
