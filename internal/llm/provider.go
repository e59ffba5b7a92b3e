// Package llm talks to the remote model providers and repairs their output.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/testforge/smartfill/internal/domain"
)

// JSONInstruction is appended to every prompt.
const JSONInstruction = "\n\nIMPORTANT: Return ONLY valid JSON without any additional text, markdown formatting, or code blocks."

// Prompt is a single-turn request to a model.
type Prompt struct {
	System string
	User   string
}

// Text joins the system and user parts for providers without a system slot.
func (p Prompt) Text() string {
	if p.System == "" {
		return p.User + JSONInstruction
	}
	return p.System + "\n\n" + p.User + JSONInstruction
}

// Provider generates a completion for a prompt.
type Provider interface {
	Name() domain.ModelProvider
	Generate(ctx context.Context, p Prompt) (*RemoteResponse, error)
}

// RemoteResponse is a raw provider response tagged with its origin.
// Text normalizes it with the rule for that provider.
type RemoteResponse struct {
	Provider domain.ModelProvider
	Raw      json.RawMessage
	Latency  time.Duration
}

// Text extracts the generated text.
func (r *RemoteResponse) Text() (string, error) {
	switch r.Provider {
	case domain.ProviderGemini:
		return geminiText(r.Raw)
	case domain.ProviderOpenAI:
		return openAIText(r.Raw)
	case domain.ProviderClaude:
		return claudeText(r.Raw)
	default:
		return "", domain.ErrUnsupportedProvider(string(r.Provider))
	}
}

// Config configures one provider client.
type Config struct {
	APIKey           string
	BaseURL          string
	Model            string
	MaxTokens        int
	Temperature      float64
	Timeout          time.Duration
	RateLimitRPM     int
	AnthropicVersion string
	HTTPClient       *http.Client
}

// Defaults per provider.
var defaultConfigs = map[domain.ModelProvider]Config{
	domain.ProviderGemini: {
		BaseURL: "https://generativelanguage.googleapis.com",
		Model:   "gemini-2.5-flash-lite-preview-06-17",
	},
	domain.ProviderOpenAI: {
		BaseURL: "https://api.openai.com",
		Model:   "gpt-4o-mini",
	},
	domain.ProviderClaude: {
		BaseURL:          "https://api.anthropic.com",
		Model:            "claude-sonnet-4-20250514",
		AnthropicVersion: "2023-06-01",
	},
}

// DefaultConfig returns the defaults for provider.
func DefaultConfig(provider domain.ModelProvider) Config {
	cfg := defaultConfigs[provider]
	cfg.MaxTokens = 2048
	cfg.Temperature = 0.1
	cfg.Timeout = 30 * time.Second
	cfg.RateLimitRPM = 60
	return cfg
}

func (c Config) withDefaults(provider domain.ModelProvider) Config {
	def := DefaultConfig(provider)
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = def.Temperature
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.RateLimitRPM == 0 {
		c.RateLimitRPM = def.RateLimitRPM
	}
	if c.AnthropicVersion == "" {
		c.AnthropicVersion = def.AnthropicVersion
	}
	return c
}

// New creates a client for provider.
func New(provider domain.ModelProvider, cfg Config) (Provider, error) {
	switch provider {
	case domain.ProviderGemini:
		return NewGeminiClient(cfg)
	case domain.ProviderOpenAI:
		return NewOpenAIClient(cfg)
	case domain.ProviderClaude:
		return NewClaudeClient(cfg)
	default:
		return nil, domain.ErrUnsupportedProvider(string(provider))
	}
}

func emptyResponse(provider domain.ModelProvider, what string) error {
	return domain.ErrResponseShape(fmt.Sprintf("%s response has no %s", provider, what))
}
