package llm

import (
	"context"
	"encoding/json"

	"github.com/testforge/smartfill/internal/domain"
)

// OpenAIClient calls the chat completions API.
type OpenAIClient struct {
	cfg  Config
	http *httpClient
}

// NewOpenAIClient creates an OpenAI client.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrAPIKeyMissing(domain.ProviderOpenAI)
	}
	cfg = cfg.withDefaults(domain.ProviderOpenAI)
	return &OpenAIClient{cfg: cfg, http: newHTTPClient(domain.ProviderOpenAI, cfg)}, nil
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Name implements Provider.
func (c *OpenAIClient) Name() domain.ModelProvider { return domain.ProviderOpenAI }

// Model returns the configured model.
func (c *OpenAIClient) Model() string { return c.cfg.Model }

// Generate implements Provider.
func (c *OpenAIClient) Generate(ctx context.Context, p Prompt) (*RemoteResponse, error) {
	var messages []Message
	if p.System != "" {
		messages = append(messages, Message{Role: "system", Content: p.System})
	}
	messages = append(messages, Message{Role: "user", Content: p.User + JSONInstruction})

	req := openAIRequest{
		Model:          c.cfg.Model,
		Messages:       messages,
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, latency, err := c.http.postJSON(ctx, c.cfg.BaseURL+"/v1/chat/completions", headers, req)
	if err != nil {
		return nil, err
	}
	return &RemoteResponse{Provider: domain.ProviderOpenAI, Raw: raw, Latency: latency}, nil
}

// openAIText reads choices[0].message.content.
func openAIText(raw json.RawMessage) (string, error) {
	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", domain.ErrResponseShape("openai response is not valid JSON").WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return "", emptyResponse(domain.ProviderOpenAI, "choices")
	}
	return resp.Choices[0].Message.Content, nil
}
