package classify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/internal/llm"
)

// RemoteField is one field as reported by a model. Older prompts used
// semanticLabel instead of semanticType; both are accepted.
type RemoteField struct {
	Selector      string   `json:"selector"`
	SemanticType  string   `json:"semanticType"`
	SemanticLabel string   `json:"semanticLabel"`
	Type          string   `json:"type"`
	Label         string   `json:"label"`
	Placeholder   string   `json:"placeholder"`
	Required      bool     `json:"required"`
	Confidence    *float64 `json:"confidence"`
}

func (f RemoteField) semantic() string {
	if f.SemanticType != "" {
		return f.SemanticType
	}
	return f.SemanticLabel
}

// RemoteForm is one form as reported by a model.
type RemoteForm struct {
	FormType string        `json:"formType"`
	Fields   []RemoteField `json:"fields"`
}

// RemoteAnalysis is the body of the "analysis" object.
type RemoteAnalysis struct {
	PageType    string       `json:"pageType"`
	Forms       []RemoteForm `json:"forms"`
	TotalFields int          `json:"totalFields"`
}

// RemoteEnvelope accepts both the nested analysis shape and the flat
// {fields, formType, confidence} shape.
type RemoteEnvelope struct {
	Analysis   *RemoteAnalysis `json:"analysis"`
	Fields     []RemoteField   `json:"fields"`
	FormType   string          `json:"formType"`
	Confidence *float64        `json:"confidence"`
}

// Normalize folds the flat shape into a single-form analysis.
func (e RemoteEnvelope) Normalize() (RemoteAnalysis, error) {
	if e.Analysis != nil {
		return *e.Analysis, nil
	}
	if e.Fields != nil {
		return RemoteAnalysis{
			Forms:       []RemoteForm{{FormType: e.FormType, Fields: e.Fields}},
			TotalFields: len(e.Fields),
		}, nil
	}
	return RemoteAnalysis{}, domain.ErrResponseShape("model response has neither analysis nor fields")
}

var pageTypes = map[string]domain.PageType{
	"login":        domain.PageTypeLogin,
	"registration": domain.PageTypeRegistration,
	"contact":      domain.PageTypeContact,
	"checkout":     domain.PageTypeCheckout,
	"profile":      domain.PageTypeProfile,
	"general":      domain.PageTypeGeneral,
}

var formTypes = map[string]domain.FormType{
	"login":        domain.FormTypeLogin,
	"registration": domain.FormTypeRegistration,
	"contact":      domain.FormTypeContact,
	"checkout":     domain.FormTypeCheckout,
	"general":      domain.FormTypeGeneral,
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// ValidateForms drops fields without a selector, type or recognized
// semantic label, then drops forms left empty. It fails with NO_VALID_FORMS
// when nothing survives.
func ValidateForms(a RemoteAnalysis, pageURL string) ([]domain.ClassifiedForm, error) {
	var forms []domain.ClassifiedForm

	for i, rf := range a.Forms {
		var fields []domain.ClassifiedField
		var labels []domain.SemanticLabel

		for _, f := range rf.Fields {
			selector := strings.TrimSpace(f.Selector)
			semantic := strings.TrimSpace(f.semantic())
			if selector == "" || semantic == "" || strings.TrimSpace(f.Type) == "" {
				continue
			}
			label := domain.ParseSemanticLabel(semantic)
			if !label.IsKnown() {
				continue
			}

			confidence := domain.ConfidenceForm
			if f.Confidence != nil {
				confidence = clamp(*f.Confidence)
			}

			fields = append(fields, domain.ClassifiedField{
				Selector:      selector,
				Type:          strings.ToLower(f.Type),
				Label:         f.Label,
				Placeholder:   f.Placeholder,
				Required:      f.Required,
				SemanticLabel: label,
				Confidence:    confidence,
			})
			labels = append(labels, label)
		}

		if len(fields) == 0 {
			continue
		}

		formType, ok := formTypes[strings.ToLower(strings.TrimSpace(rf.FormType))]
		if !ok {
			formType = DetermineFormType(labels, pageURL)
		}

		forms = append(forms, domain.ClassifiedForm{
			Index:    i,
			FormType: formType,
			Fields:   fields,
		})
	}

	if len(forms) == 0 {
		return nil, domain.ErrNoValidForms()
	}
	return forms, nil
}

// ValidateRemoteAnalysis repairs raw model text and validates it into a result.
// fallbackPageType is used when the model reports no recognized page type.
func ValidateRemoteAnalysis(raw string, pageURL string, fallbackPageType domain.PageType) (*domain.AnalysisResult, error) {
	var env RemoteEnvelope
	if err := llm.DecodeModelResponse(raw, &env); err != nil {
		return nil, err
	}

	analysis, err := env.Normalize()
	if err != nil {
		return nil, err
	}

	forms, err := ValidateForms(analysis, pageURL)
	if err != nil {
		return nil, err
	}

	total := 0
	sum := 0.0
	for _, f := range forms {
		total += len(f.Fields)
		for _, field := range f.Fields {
			sum += field.Confidence
		}
	}

	confidence := sum / float64(total)
	if env.Confidence != nil {
		confidence = clamp(*env.Confidence)
	}

	pageType, ok := pageTypes[strings.ToLower(strings.TrimSpace(analysis.PageType))]
	if !ok {
		pageType = fallbackPageType
	}
	if pageType == "" {
		pageType = domain.PageTypeGeneral
	}

	return &domain.AnalysisResult{
		ID:          uuid.New().String(),
		URL:         pageURL,
		PageType:    pageType,
		FormType:    forms[0].FormType,
		Forms:       forms,
		TotalFields: total,
		Confidence:  confidence,
		AnalyzedAt:  time.Now().UTC(),
	}, nil
}

// State is a step of a remote classification attempt.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateValidating State = "validating"
	StateAccepted   State = "accepted"
	StateRejected   State = "rejected"
)

// RemoteClassifier sends one analysis prompt to a provider and validates the
// answer. It never retries; fallback is the caller's decision.
type RemoteClassifier struct {
	provider llm.Provider
	logger   *zap.Logger

	mu            sync.Mutex
	state         State
	onStateChange func(from, to State)
}

// NewRemoteClassifier creates a classifier in the idle state.
func NewRemoteClassifier(provider llm.Provider, logger *zap.Logger) *RemoteClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteClassifier{provider: provider, logger: logger, state: StateIdle}
}

// OnStateChange registers a callback invoked on every transition.
func (c *RemoteClassifier) OnStateChange(fn func(from, to State)) {
	c.mu.Lock()
	c.onStateChange = fn
	c.mu.Unlock()
}

// State returns the current state.
func (c *RemoteClassifier) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *RemoteClassifier) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	fn := c.onStateChange
	c.mu.Unlock()
	c.notify(fn, from, to)
}

func (c *RemoteClassifier) notify(fn func(from, to State), from, to State) {
	c.logger.Debug("remote classifier state change",
		zap.String("provider", string(c.provider.Name())),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	if fn != nil {
		fn(from, to)
	}
}

// Classify runs one attempt. A classifier that is mid-attempt rejects
// a second call with ANALYSIS_IN_PROGRESS.
func (c *RemoteClassifier) Classify(ctx context.Context, prompt llm.Prompt, pageURL string, fallbackPageType domain.PageType) (*domain.AnalysisResult, error) {
	c.mu.Lock()
	if c.state == StateRequesting || c.state == StateValidating {
		c.mu.Unlock()
		return nil, domain.ErrAnalysisInProgress()
	}
	from := c.state
	c.state = StateRequesting
	fn := c.onStateChange
	c.mu.Unlock()
	c.notify(fn, from, StateRequesting)

	resp, err := c.provider.Generate(ctx, prompt)
	if err != nil {
		c.transition(StateRejected)
		return nil, err
	}

	c.transition(StateValidating)
	text, err := resp.Text()
	if err != nil {
		c.transition(StateRejected)
		return nil, err
	}

	result, err := ValidateRemoteAnalysis(text, pageURL, fallbackPageType)
	if err != nil {
		c.logger.Warn("remote analysis rejected",
			zap.String("provider", string(c.provider.Name())),
			zap.String("code", domain.GetErrorCode(err)),
		)
		c.transition(StateRejected)
		return nil, err
	}

	result.Source = domain.SourceOf(c.provider.Name())
	c.transition(StateAccepted)
	return result, nil
}
