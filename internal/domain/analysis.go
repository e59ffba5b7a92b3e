package domain

import "time"

// Confidence constants used by the local classifier.
const (
	ConfidenceKnown   = 0.8
	ConfidenceUnknown = 0.3
	ConfidenceForm    = 0.7
)

// ClassifiedField is a field paired with its semantic label.
type ClassifiedField struct {
	Selector      string        `json:"selector"`
	Type          string        `json:"type"`
	Name          string        `json:"name,omitempty"`
	Label         string        `json:"label,omitempty"`
	Placeholder   string        `json:"placeholder,omitempty"`
	Required      bool          `json:"required"`
	SemanticLabel SemanticLabel `json:"semanticLabel"`
	Confidence    float64       `json:"confidence"`
}

// Hint returns the human-readable text used to recover unknown fields.
func (f ClassifiedField) Hint() string {
	switch {
	case f.Label != "":
		return f.Label
	case f.Placeholder != "":
		return f.Placeholder
	default:
		return f.Name
	}
}

// ClassifiedForm is one form after classification.
type ClassifiedForm struct {
	Index    int               `json:"index"`
	Action   string            `json:"action,omitempty"`
	Method   string            `json:"method,omitempty"`
	FormType FormType          `json:"formType"`
	Fields   []ClassifiedField `json:"fields"`
}

// Source names where a result came from: "local" or a remote provider.
type Source string

const SourceLocal Source = "local"

// SourceOf returns the source tag for a provider.
func SourceOf(p ModelProvider) Source {
	if p == "" {
		return SourceLocal
	}
	return Source(p)
}

// AnalysisResult is the output of the Semantic Classifier for one page.
// Fallback is set whenever a remote attempt failed and the local path
// produced the result instead.
type AnalysisResult struct {
	ID             string           `json:"id"`
	URL            string           `json:"url,omitempty"`
	PageType       PageType         `json:"pageType"`
	FormType       FormType         `json:"formType"`
	Forms          []ClassifiedForm `json:"forms"`
	TotalFields    int              `json:"totalFields"`
	Confidence     float64          `json:"confidence"`
	Source         Source           `json:"source"`
	Fallback       bool             `json:"fallback"`
	FallbackReason string           `json:"fallbackReason,omitempty"`
	AnalyzedAt     time.Time        `json:"analyzedAt"`
}

// Fields flattens the classified fields of every form.
func (r *AnalysisResult) Fields() []ClassifiedField {
	var fields []ClassifiedField
	for _, f := range r.Forms {
		fields = append(fields, f.Fields...)
	}
	return fields
}

// ContentStats describes a sanitization pass.
type ContentStats struct {
	OriginalSize    int `json:"originalSize"`
	CleanedSize     int `json:"cleanedSize"`
	EstimatedTokens int `json:"estimatedTokens"`
	FormCount       int `json:"formCount"`
	InputCount      int `json:"inputCount"`
}

// PageContent is the sanitized page handed to a remote model.
type PageContent struct {
	URL      string       `json:"url"`
	Title    string       `json:"title"`
	HTML     string       `json:"html"`
	PageType PageType     `json:"pageType"`
	Stats    ContentStats `json:"stats"`
}
