package llm

import (
	"context"
	"encoding/json"

	"github.com/testforge/smartfill/internal/domain"
)

// ClaudeClient calls the Anthropic messages API.
type ClaudeClient struct {
	cfg  Config
	http *httpClient
}

// NewClaudeClient creates a Claude client.
func NewClaudeClient(cfg Config) (*ClaudeClient, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrAPIKeyMissing(domain.ProviderClaude)
	}
	cfg = cfg.withDefaults(domain.ProviderClaude)
	return &ClaudeClient{cfg: cfg, http: newHTTPClient(domain.ProviderClaude, cfg)}, nil
}

// Request represents a Claude API request
type Request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Message represents a conversation message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response represents a Claude API response
type Response struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Usage contains token usage information
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Name implements Provider.
func (c *ClaudeClient) Name() domain.ModelProvider { return domain.ProviderClaude }

// Model returns the configured model.
func (c *ClaudeClient) Model() string { return c.cfg.Model }

// Generate implements Provider.
func (c *ClaudeClient) Generate(ctx context.Context, p Prompt) (*RemoteResponse, error) {
	req := Request{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    p.System,
		Messages: []Message{
			{Role: "user", Content: p.User + JSONInstruction},
		},
		Temperature: c.cfg.Temperature,
	}

	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": c.cfg.AnthropicVersion,
	}

	raw, latency, err := c.http.postJSON(ctx, c.cfg.BaseURL+"/v1/messages", headers, req)
	if err != nil {
		return nil, err
	}
	return &RemoteResponse{Provider: domain.ProviderClaude, Raw: raw, Latency: latency}, nil
}

// claudeText reads the first text block of content.
func claudeText(raw json.RawMessage) (string, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", domain.ErrResponseShape("claude response is not valid JSON").WithCause(err)
	}
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", emptyResponse(domain.ProviderClaude, "text content")
}
