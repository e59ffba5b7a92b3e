package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/testforge/smartfill/internal/domain"
)

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	cfg  Config
	http *httpClient
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrAPIKeyMissing(domain.ProviderGemini)
	}
	cfg = cfg.withDefaults(domain.ProviderGemini)
	return &GeminiClient{cfg: cfg, http: newHTTPClient(domain.ProviderGemini, cfg)}, nil
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Name implements Provider.
func (c *GeminiClient) Name() domain.ModelProvider { return domain.ProviderGemini }

// Model returns the configured model.
func (c *GeminiClient) Model() string { return c.cfg.Model }

// Generate implements Provider.
func (c *GeminiClient) Generate(ctx context.Context, p Prompt) (*RemoteResponse, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Model), url.QueryEscape(c.cfg.APIKey))

	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: p.Text()}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      c.cfg.Temperature,
			MaxOutputTokens:  c.cfg.MaxTokens,
			ResponseMimeType: "application/json",
		},
	}

	raw, latency, err := c.http.postJSON(ctx, endpoint, nil, req)
	if err != nil {
		return nil, err
	}
	return &RemoteResponse{Provider: domain.ProviderGemini, Raw: raw, Latency: latency}, nil
}

// geminiText reads candidates[0].content.parts[0].text.
func geminiText(raw json.RawMessage) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", domain.ErrResponseShape("gemini response is not valid JSON").WithCause(err)
	}
	if len(resp.Candidates) == 0 {
		return "", emptyResponse(domain.ProviderGemini, "candidates")
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return "", emptyResponse(domain.ProviderGemini, "content parts")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
