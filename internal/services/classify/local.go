package classify

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/testforge/smartfill/internal/domain"
)

// ClassifyField labels one field with the local rules.
func ClassifyField(f domain.PageField) domain.ClassifiedField {
	label := Label(f)
	confidence := domain.ConfidenceUnknown
	if label.IsKnown() {
		confidence = domain.ConfidenceKnown
	}

	typ := f.Type
	if typ == "" {
		typ = "text"
	}

	return domain.ClassifiedField{
		Selector:      f.Selector,
		Type:          typ,
		Name:          f.Name,
		Label:         f.Label,
		Placeholder:   f.Placeholder,
		Required:      f.Required,
		SemanticLabel: label,
		Confidence:    confidence,
	}
}

// ClassifyForm labels every field of a form and derives its type.
func ClassifyForm(form domain.FormRecord, pageURL string) domain.ClassifiedForm {
	fields := make([]domain.ClassifiedField, 0, len(form.Fields))
	labels := make([]domain.SemanticLabel, 0, len(form.Fields))
	for _, f := range form.Fields {
		cf := ClassifyField(f)
		fields = append(fields, cf)
		labels = append(labels, cf.SemanticLabel)
	}

	return domain.ClassifiedForm{
		Index:    form.Index,
		Action:   form.Action,
		Method:   form.Method,
		FormType: DetermineFormType(labels, pageURL),
		Fields:   fields,
	}
}

// ClassifyPage runs the local classifier over every form on the page.
func ClassifyPage(page domain.PageData) *domain.AnalysisResult {
	forms := make([]domain.ClassifiedForm, 0, len(page.Forms))
	var all []domain.SemanticLabel
	total := 0

	for _, form := range page.Forms {
		cf := ClassifyForm(form, page.URL)
		forms = append(forms, cf)
		for _, f := range cf.Fields {
			all = append(all, f.SemanticLabel)
		}
		total += len(cf.Fields)
	}

	pageType := page.PageType
	if pageType == "" {
		pageType = domain.PageTypeGeneral
	}

	return &domain.AnalysisResult{
		ID:          uuid.New().String(),
		URL:         page.URL,
		PageType:    pageType,
		FormType:    DetermineFormType(all, page.URL),
		Forms:       forms,
		TotalFields: total,
		Confidence:  domain.ConfidenceForm,
		Source:      domain.SourceLocal,
		AnalyzedAt:  time.Now().UTC(),
	}
}

// DetermineFormType infers the purpose of a set of labelled fields.
func DetermineFormType(labels []domain.SemanticLabel, pageURL string) domain.FormType {
	var email, address, phone bool
	passwords := 0
	for _, l := range labels {
		switch l {
		case domain.LabelEmail:
			email = true
		case domain.LabelPassword, domain.LabelConfirmPassword:
			passwords++
		case domain.LabelAddress:
			address = true
		case domain.LabelPhone:
			phone = true
		}
	}

	if email && passwords > 0 {
		if passwords > 1 {
			return domain.FormTypeRegistration
		}
		return domain.FormTypeLogin
	}

	if address || phone {
		return domain.FormTypeContact
	}

	u := strings.ToLower(pageURL)
	if strings.Contains(u, "checkout") || strings.Contains(u, "payment") {
		return domain.FormTypeCheckout
	}

	return domain.FormTypeGeneral
}
