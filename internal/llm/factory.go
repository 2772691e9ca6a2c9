package llm

import (
	"fmt"
	"time"
)

// ProviderOptions holds the provider-independent generation settings.
type ProviderOptions struct {
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens is the default completion token limit (0 means provider default).
	MaxTokens int
	// Timeout is the timeout for a single API call.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int
	// RetryDelay is the initial backoff delay; it doubles per attempt.
	RetryDelay time.Duration
}

// applyDefaults fills in zero-valued options.
func (o *ProviderOptions) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
}

// FactoryConfig holds the parameters needed to create a Provider.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("openai" or "anthropic").
	Provider string
	// Options are the provider-independent generation settings.
	Options ProviderOptions
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
}

// NewProvider creates a Provider based on the configuration. Supports
// "openai" and "anthropic". Returns an error for unsupported or empty
// provider values.
func NewProvider(cfg FactoryConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI, cfg.Options), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic, cfg.Options), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
