package domain

import "fmt"

// ModelProvider selects the classifier and fill-data backend.
type ModelProvider string

const (
	ProviderLocal  ModelProvider = "local"
	ProviderGemini ModelProvider = "gemini"
	ProviderOpenAI ModelProvider = "openai"
	ProviderClaude ModelProvider = "claude"
)

// IsValid reports whether p is a supported provider.
func (p ModelProvider) IsValid() bool {
	switch p {
	case ProviderLocal, ProviderGemini, ProviderOpenAI, ProviderClaude:
		return true
	}
	return false
}

// IsRemote reports whether p calls out to a model API.
func (p ModelProvider) IsRemote() bool {
	return p.IsValid() && p != ProviderLocal
}

// DefaultMaxContentSize is the analysis budget in thousands of tokens.
const DefaultMaxContentSize = 50

// Settings are the user's preferences. They are read from the store at the
// start of every operation.
type Settings struct {
	ModelProvider   ModelProvider `json:"modelProvider"`
	APIKey          string        `json:"apiKey"`
	Model           string        `json:"model,omitempty"`
	AutoAnalyze     bool          `json:"autoAnalyze"`
	DebugMode       bool          `json:"debugMode"`
	SmartFill       bool          `json:"smartFill"`
	MaxContentSize  int           `json:"maxContentSize"`
	FallbackToLocal bool          `json:"fallbackToLocal"`
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{
		ModelProvider:   ProviderLocal,
		APIKey:          "",
		AutoAnalyze:     true,
		DebugMode:       false,
		SmartFill:       false,
		MaxContentSize:  DefaultMaxContentSize,
		FallbackToLocal: true,
	}
}

// Validate checks the provider and budget.
func (s *Settings) Validate() error {
	if !s.ModelProvider.IsValid() {
		return ErrUnsupportedProvider(string(s.ModelProvider))
	}
	if s.MaxContentSize <= 0 {
		return ErrValidationField("maxContentSize", fmt.Sprintf("maxContentSize must be positive (got %d)", s.MaxContentSize))
	}
	return nil
}

// TokenBudget returns MaxContentSize in tokens.
func (s Settings) TokenBudget() int {
	return s.MaxContentSize * 1000
}

// RedactedAPIKey replaces a stored API key in echoed settings.
const RedactedAPIKey = "********"

// Redacted returns a copy safe to log or echo back.
func (s Settings) Redacted() Settings {
	if s.APIKey != "" {
		s.APIKey = RedactedAPIKey
	}
	return s
}
