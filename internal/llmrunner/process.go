package llmrunner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// ProcessRunner manages a subprocess backing an opaque LLM sidecar
// binary (configured via ProcessConfig.Binary), speaking a streaming
// JSON-lines protocol on stdout.
type ProcessRunner struct {
	binary string
	args   []string

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser

	ctx       context.Context
	cancel    context.CancelFunc
	outputCh  chan StreamEvent
	stderrBuf []byte
	once      sync.Once
	mu        sync.Mutex
	started   bool
	done      chan struct{}
}

// ProcessConfig configures a ProcessRunner.
type ProcessConfig struct {
	// Binary is the executable name or path, e.g. "claude".
	Binary string
	// ExtraArgs are appended before the prompt flag on every invocation.
	ExtraArgs []string
}

// NewProcessRunner creates a ProcessRunner bound to ctx for cancellation.
func NewProcessRunner(ctx context.Context, cfg ProcessConfig) *ProcessRunner {
	ctx, cancel := context.WithCancel(ctx)
	return &ProcessRunner{
		binary:   cfg.Binary,
		args:     cfg.ExtraArgs,
		ctx:      ctx,
		cancel:   cancel,
		outputCh: make(chan StreamEvent, 100),
		done:     make(chan struct{}),
	}
}

var _ Runner = (*ProcessRunner)(nil)

// Start launches the subprocess with default options.
func (p *ProcessRunner) Start(prompt, workDir string) error {
	return p.StartWithOptions(prompt, workDir, nil)
}

// StartWithOptions launches the subprocess with --output-format
// stream-json --print --verbose plus the configured extra args, matching
// the teacher's ClaudeProcess invocation shape.
func (p *ProcessRunner) StartWithOptions(prompt, workDir string, opts *StartOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("runner already started")
	}

	args := append([]string{
		"--output-format", "stream-json",
		"--print",
		"--verbose",
	}, p.args...)

	if opts != nil && opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}

	args = append(args, "-p", prompt)

	p.cmd = exec.CommandContext(p.ctx, p.binary, args...)
	if workDir != "" {
		p.cmd.Dir = workDir
	}

	var err error
	p.stdout, err = p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	p.stderr, err = p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}
	p.started = true

	go p.readOutput()
	go p.readStderr()

	return nil
}

func (p *ProcessRunner) readOutput() {
	defer close(p.outputCh)
	defer close(p.done)

	scanner := bufio.NewScanner(p.stdout)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		event, err := parseStreamEvent(line)
		if err != nil {
			p.outputCh <- StreamEvent{Type: StreamEventError, Error: fmt.Sprintf("parse error: %v", err), Raw: append([]byte(nil), line...)}
			continue
		}

		select {
		case p.outputCh <- event:
		case <-p.ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil && p.ctx.Err() == nil {
		p.outputCh <- StreamEvent{Type: StreamEventError, Error: fmt.Sprintf("read error: %v", err)}
	}
}

func (p *ProcessRunner) readStderr() {
	scanner := bufio.NewScanner(p.stderr)
	buf := make([]byte, 16*1024)
	scanner.Buffer(buf, 256*1024)

	var allStderr []byte
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		p.mu.Lock()
		allStderr = append(allStderr, line...)
		allStderr = append(allStderr, '\n')
		p.stderrBuf = allStderr
		p.mu.Unlock()

		select {
		case p.outputCh <- StreamEvent{Type: StreamEventError, Error: fmt.Sprintf("[stderr] %s", string(line))}:
		case <-p.ctx.Done():
			return
		default:
		}
	}

	if err := scanner.Err(); err != nil && p.ctx.Err() == nil {
		p.mu.Lock()
		allStderr = append(allStderr, []byte(fmt.Sprintf("[stderr read error: %v]", err))...)
		p.stderrBuf = allStderr
		p.mu.Unlock()
	}
}

func parseStreamEvent(data []byte) (StreamEvent, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return StreamEvent{}, fmt.Errorf("unmarshal json: %w", err)
	}

	event := StreamEvent{Raw: append([]byte(nil), data...)}
	if t, ok := raw["type"].(string); ok {
		event.Type = StreamEventType(t)
	}

	switch event.Type {
	case StreamEventSystem, StreamEventAssistant, StreamEventUser:
		if msg, ok := raw["message"].(string); ok {
			event.Message = msg
		} else if content, ok := raw["content"].(string); ok {
			event.Message = content
		}
		if event.Type == StreamEventAssistant {
			event.ToolAction = extractToolAction(raw)
		}
	case StreamEventResult:
		if result, ok := raw["result"].(string); ok {
			event.Message = result
		} else if content, ok := raw["content"].(string); ok {
			event.Message = content
		}
	case StreamEventError:
		if errMsg, ok := raw["error"].(string); ok {
			event.Error = errMsg
		} else if msg, ok := raw["message"].(string); ok {
			event.Error = msg
		}
	}

	return event, nil
}

// extractToolAction surfaces a short human-readable description of the
// tool call embedded in an assistant event, if any.
func extractToolAction(raw map[string]interface{}) string {
	if msg, ok := raw["message"].(map[string]interface{}); ok {
		if content, ok := msg["content"].([]interface{}); ok {
			if action := findToolUse(content); action != "" {
				return action
			}
		}
	}
	if content, ok := raw["content"].([]interface{}); ok {
		if action := findToolUse(content); action != "" {
			return action
		}
	}
	if toolUse, ok := raw["tool_use"].(map[string]interface{}); ok {
		return formatToolAction(toolUse)
	}
	return ""
}

func findToolUse(content []interface{}) string {
	for _, item := range content {
		block, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if blockType, _ := block["type"].(string); blockType == "tool_use" {
			return formatToolAction(block)
		}
	}
	return ""
}

func formatToolAction(block map[string]interface{}) string {
	name, _ := block["name"].(string)
	if name == "" {
		return ""
	}
	input, _ := block["input"].(map[string]interface{})

	switch name {
	case "Read":
		if path, ok := input["file_path"].(string); ok {
			return "Reading " + path
		}
		return "Reading file"
	case "Edit":
		if path, ok := input["file_path"].(string); ok {
			return "Editing " + path
		}
		return "Editing file"
	case "Write":
		if path, ok := input["file_path"].(string); ok {
			return "Writing " + path
		}
		return "Writing file"
	case "Bash":
		if cmd, ok := input["command"].(string); ok {
			return "Running " + cmd
		}
		return "Running command"
	default:
		return name
	}
}

// Output returns the event channel, closed on completion.
func (p *ProcessRunner) Output() <-chan StreamEvent {
	return p.outputCh
}

// Wait blocks until the subprocess exits.
func (p *ProcessRunner) Wait() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return fmt.Errorf("runner not started")
	}
	p.mu.Unlock()

	<-p.done

	if err := p.cmd.Wait(); err != nil {
		p.mu.Lock()
		stderr := string(p.stderrBuf)
		p.mu.Unlock()

		msg := fmt.Sprintf("process exited with error: %v", err)
		if p.ctx.Err() != nil {
			msg += fmt.Sprintf(" (context: %v)", p.ctx.Err())
		}
		if stderr != "" {
			msg += fmt.Sprintf("; stderr: %s", stderr)
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// Kill terminates the subprocess immediately.
func (p *ProcessRunner) Kill() error {
	p.once.Do(func() { p.cancel() })

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Stderr returns captured stderr output.
func (p *ProcessRunner) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.stderrBuf)
}

// PID returns the subprocess id, or 0 if not started.
func (p *ProcessRunner) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Pid
	}
	return 0
}
