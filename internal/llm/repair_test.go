package llm

import (
	"strings"
	"testing"

	"github.com/testforge/smartfill/internal/domain"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "plain JSON",
			input:    `{"key": "value"}`,
			expected: `{"key": "value"}`,
		},
		{
			name:     "JSON in code block",
			input:    "```json\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "bare fence",
			input:    "```\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "JSON with surrounding text",
			input:    `Here is the result: {"key": "value"} Hope this helps!`,
			expected: `{"key": "value"}`,
		},
		{
			name:     "nested JSON",
			input:    `{"outer": {"inner": "value"}}`,
			expected: `{"outer": {"inner": "value"}}`,
		},
		{
			name:     "fenced with prose after closing fence",
			input:    "```json\n{\"a\": [1, 2]}\n```\nLet me know.",
			expected: `{"a": [1, 2]}`,
		},
		{
			name:    "no JSON",
			input:   "I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "broken JSON",
			input:   `{"key": "value",}`,
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if !domain.HasCode(err, domain.ErrCodeResponseParse) {
					t.Errorf("ExtractJSON() error = %v, want RESPONSE_PARSE_ERROR", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON() error = %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestExtractJSON_ErrorExcerpt(t *testing.T) {
	raw := strings.Repeat("x", 500)
	_, err := ExtractJSON(raw)
	appErr, ok := domain.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	excerpt, _ := appErr.Metadata["excerpt"].(string)
	if len(excerpt) != domain.ExcerptLength {
		t.Errorf("excerpt length = %d, want %d", len(excerpt), domain.ExcerptLength)
	}
	if !strings.HasPrefix(appErr.Message, "Failed to parse AI response as JSON") {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestParseModelResponse(t *testing.T) {
	out, err := ParseModelResponse("```json\n{\"#email\": \"a@b.com\"}\n```")
	if err != nil {
		t.Fatalf("ParseModelResponse() error = %v", err)
	}
	if out["#email"] != "a@b.com" {
		t.Errorf("out = %v", out)
	}
}

func TestDecodeModelResponse_Shape(t *testing.T) {
	var v struct {
		Fields []string `json:"fields"`
	}
	err := DecodeModelResponse(`{"fields": "not-a-list"}`, &v)
	if !domain.HasCode(err, domain.ErrCodeResponseShape) {
		t.Errorf("DecodeModelResponse() error = %v, want RESPONSE_SHAPE_ERROR", err)
	}
}
