package llmrunner

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/marcusdietz/ralph/internal/corerr"
)

// APIConfig configures an APIRunner backend.
type APIConfig struct {
	Model         anthropic.Model
	APIKey        string
	UseAWSBedrock bool
	AWSRegion     string
	AWSProfile    string
	SystemPrompt  string
}

// APIRunner is the direct-API alternative to ProcessRunner: it drives the
// Anthropic SDK (optionally through AWS Bedrock) instead of shelling out
// to a CLI binary, while satisfying the same Runner interface so the
// worker supervisor is indifferent to which backend is configured.
type APIRunner struct {
	cfg     APIConfig
	client  anthropic.Client
	model   anthropic.Model
	tracker *TokenTracker

	ctx      context.Context
	cancel   context.CancelFunc
	outputCh chan StreamEvent
	done     chan struct{}
	once     sync.Once
	mu       sync.Mutex
	started  bool
	waitErr  error
}

// NewAPIRunner builds an APIRunner bound to ctx for cancellation.
func NewAPIRunner(ctx context.Context, cfg APIConfig) (*APIRunner, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, corerr.Validationf("ANTHROPIC_API_KEY is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_5_20250929
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	runCtx, cancel := context.WithCancel(ctx)
	return &APIRunner{
		cfg:      cfg,
		client:   anthropic.NewClient(opts...),
		model:    model,
		tracker:  NewTokenTracker(),
		ctx:      runCtx,
		cancel:   cancel,
		outputCh: make(chan StreamEvent, 100),
		done:     make(chan struct{}),
	}, nil
}

var _ Runner = (*APIRunner)(nil)

// translateModelForBedrock maps a standard model name onto its Bedrock
// cross-region inference profile.
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}
	if b, ok := bedrockModels[model]; ok {
		return anthropic.Model(b)
	}
	return model
}

// Tracker returns the token tracker accumulating usage for this runner.
func (a *APIRunner) Tracker() *TokenTracker {
	return a.tracker
}

// Start launches a single message-request invocation with default
// options.
func (a *APIRunner) Start(prompt, workDir string) error {
	return a.StartWithOptions(prompt, workDir, nil)
}

// StartWithOptions launches a single message-request invocation. workDir
// is accepted for interface parity with ProcessRunner but unused here:
// the API backend has no process working directory of its own: callers
// that need filesystem access from the model still route it through the
// same tool-execution surface the process backend's CLI provides.
func (a *APIRunner) StartWithOptions(prompt, workDir string, opts *StartOptions) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("runner already started")
	}
	a.started = true
	a.mu.Unlock()

	model := a.model
	if opts != nil && opts.Model != "" {
		model = anthropic.Model(opts.Model)
		if a.cfg.UseAWSBedrock {
			model = translateModelForBedrock(model)
		}
	}

	go a.run(model, prompt)
	return nil
}

func (a *APIRunner) run(model anthropic.Model, prompt string) {
	defer close(a.outputCh)
	defer close(a.done)

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if a.cfg.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.cfg.SystemPrompt}}
	}

	stream := a.client.Messages.NewStreaming(a.ctx, params)
	var message anthropic.Message

	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			a.emit(StreamEvent{Type: StreamEventError, Error: err.Error()})
			continue
		}

		switch delta := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta.Delta.Text != "" {
				a.emit(StreamEvent{Type: StreamEventAssistant, Message: delta.Delta.Text})
			}
		}
	}

	if err := stream.Err(); err != nil {
		a.mu.Lock()
		a.waitErr = err
		a.mu.Unlock()
		a.emit(StreamEvent{Type: StreamEventError, Error: err.Error()})
		return
	}

	a.tracker.Add(message.Usage.InputTokens, message.Usage.OutputTokens)
	a.emit(StreamEvent{Type: StreamEventResult, Message: message.Content[0].Text})
}

func (a *APIRunner) emit(ev StreamEvent) {
	select {
	case a.outputCh <- ev:
	case <-a.ctx.Done():
	}
}

// Output returns the event channel, closed on completion.
func (a *APIRunner) Output() <-chan StreamEvent {
	return a.outputCh
}

// Wait blocks until the invocation completes.
func (a *APIRunner) Wait() error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return fmt.Errorf("runner not started")
	}
	a.mu.Unlock()

	<-a.done

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.waitErr
}

// Kill cancels the in-flight request.
func (a *APIRunner) Kill() error {
	a.once.Do(func() { a.cancel() })
	return nil
}

// Stderr always returns "" for the API backend.
func (a *APIRunner) Stderr() string { return "" }

// PID always returns 0 for the API backend.
func (a *APIRunner) PID() int { return 0 }
