package generator

import (
	"context"
	"fmt"
	"strings"
)

// Provider is a text generation backend
type Provider interface {
	// Generate sends a single prompt and returns the generated text
	Generate(ctx context.Context, prompt string) (string, error)

	// Name returns the provider name
	Name() string
}

// ProviderConfig selects and configures a provider
type ProviderConfig struct {
	Name      string // gemini, openai, anthropic
	APIKey    string
	Model     string
	MaxTokens int
}

// Default models per provider
const (
	DefaultGeminiModel    = "gemini-1.5-flash"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// NewProvider creates the provider named in cfg
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for provider %q", cfg.Name)
	}

	switch strings.ToLower(cfg.Name) {
	case "", "gemini":
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, cfg.MaxTokens)
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.MaxTokens), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Name)
	}
}

// IsRetryableError reports whether err looks transient (network, rate limit, 5xx)
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"econnreset", "etimedout", "connection reset",
		"429", "rate limit", "resource_exhausted",
		"500", "502", "503", "504", "unavailable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// closer is implemented by providers that hold a client connection
type closer interface {
	Close() error
}

// CloseProvider releases provider resources when it has any
func CloseProvider(p Provider) error {
	if c, ok := p.(closer); ok {
		return c.Close()
	}
	return nil
}
