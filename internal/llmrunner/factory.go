package llmrunner

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
)

// Backend selects which Runner implementation a ConfiguredFactory builds.
type Backend string

const (
	BackendProcess Backend = "process"
	BackendAPI     Backend = "api"
)

// Config is the subset of internal/config's runner settings needed to
// build a Runner, kept separate from the config package so llmrunner has
// no import-cycle dependency on it.
type Config struct {
	Backend Backend

	ProcessBinary string
	ProcessArgs   []string

	APIModel        string
	APIKey          string
	UseAWSBedrock   bool
	AWSRegion       string
	AWSProfile      string
	APISystemPrompt string
}

// ConfiguredFactory builds Runner instances for whichever backend Config
// selects, implementing Factory.
type ConfiguredFactory struct {
	cfg Config
}

// NewConfiguredFactory returns a Factory bound to cfg.
func NewConfiguredFactory(cfg Config) *ConfiguredFactory {
	return &ConfiguredFactory{cfg: cfg}
}

var _ Factory = (*ConfiguredFactory)(nil)

// NewRunner builds a Runner against context.Background(); callers that
// need their own cancellation scope should use NewRunnerContext instead.
func (f *ConfiguredFactory) NewRunner() Runner {
	r, _ := f.NewRunnerContext(context.Background())
	return r
}

// NewRunnerContext builds a Runner bound to ctx.
func (f *ConfiguredFactory) NewRunnerContext(ctx context.Context) (Runner, error) {
	switch f.cfg.Backend {
	case BackendAPI:
		return NewAPIRunner(ctx, APIConfig{
			Model:         anthropic.Model(f.cfg.APIModel),
			APIKey:        f.cfg.APIKey,
			UseAWSBedrock: f.cfg.UseAWSBedrock,
			AWSRegion:     f.cfg.AWSRegion,
			AWSProfile:    f.cfg.AWSProfile,
			SystemPrompt:  f.cfg.APISystemPrompt,
		})
	default:
		return NewProcessRunner(ctx, ProcessConfig{
			Binary:    f.cfg.ProcessBinary,
			ExtraArgs: f.cfg.ProcessArgs,
		}), nil
	}
}
