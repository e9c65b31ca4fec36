package llm

import (
	"context"
	"fmt"

	"github.com/ppiankov/veracity/internal/model"
)

// Provider is a text-completion backend
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the first candidate's text,
	// trimmed. A reachable service that answers with an unexpected shape
	// yields "" and no error. Transport failures and non-2xx answers wrap
	// model.ErrInferenceUnreachable.
	Complete(ctx context.Context, prompt string) (string, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Config holds provider configuration
type Config struct {
	// Provider name: "gemini", "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	APIKey string

	// BaseURL overrides the provider endpoint (tests, proxies, Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	MaxTokens   int
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "gemini",
		Model:       "gemini-1.5-flash",
		Timeout:     30,
		MaxTokens:   1000,
		Temperature: 0.3,
	}
}

// ConfigFromModel converts the runtime configuration to a provider Config
func ConfigFromModel(inf model.InferenceConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:    inf.Provider,
		Model:       inf.Model,
		APIKey:      inf.APIKey,
		BaseURL:     inf.BaseURL,
		Timeout:     inf.Timeout,
		MaxTokens:   inf.MaxTokens,
		Temperature: inf.Temperature,
		HTTPProxy:   httpCfg.HTTPProxy,
		HTTPSProxy:  httpCfg.HTTPSProxy,
		NoProxy:     httpCfg.NoProxy,
	}
}

func unreachable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrInferenceUnreachable, provider, err)
}

func unreachableStatus(provider string, status int, detail string) error {
	return fmt.Errorf("%w: %s: API error (%d): %s", model.ErrInferenceUnreachable, provider, status, detail)
}

func (c Config) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}

func errMissingKey(provider string) error {
	return fmt.Errorf("%s API key is required", provider)
}
