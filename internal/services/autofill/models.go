package autofill

import (
	"github.com/testforge/smartfill/internal/domain"
)

// AnalyzeRequest asks for a field analysis. Page takes precedence over HTML;
// with neither, URL is rendered through the page source.
type AnalyzeRequest struct {
	URL  string           `json:"url"`
	HTML string           `json:"html,omitempty"`
	Page *domain.PageData `json:"page,omitempty"`
}

// ContentRequest carries raw page markup for the sanitized path.
type ContentRequest struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	HTML  string `json:"html,omitempty"`
}

// ContentResult is the sanitized page plus stats.
type ContentResult struct {
	Content   domain.PageContent `json:"content"`
	Truncated bool               `json:"truncated"`
}

// FillRequest asks for fill values. An inline Profile takes precedence over
// ProfileName.
type FillRequest struct {
	ProfileName string                   `json:"profileName,omitempty"`
	Profile     *domain.Profile          `json:"profile,omitempty"`
	Fields      []domain.ClassifiedField `json:"fields"`
}

// FillFormRequest writes a prepared fill map into a page.
type FillFormRequest struct {
	URL     string         `json:"url"`
	FillMap domain.FillMap `json:"fillData"`
}

// AutofillRequest generates values and writes them in one step. Without
// Fields the page at URL is analyzed first.
type AutofillRequest struct {
	URL         string                   `json:"url"`
	ProfileName string                   `json:"profileName"`
	Fields      []domain.ClassifiedField `json:"formFields,omitempty"`
}

// AutofillResult reports both halves of an autofill.
type AutofillResult struct {
	Analysis *domain.AnalysisResult `json:"analysis,omitempty"`
	Fill     *domain.FillResult     `json:"fill"`
	Report   domain.FillReport      `json:"report"`
}

// PageInfoRequest identifies a page by markup or URL.
type PageInfoRequest struct {
	URL  string `json:"url"`
	HTML string `json:"html,omitempty"`
}

// PageInfo is the cheap summary shown before analysis.
type PageInfo struct {
	URL        string          `json:"url"`
	Title      string          `json:"title"`
	FormCount  int             `json:"formCount"`
	FieldCount int             `json:"fieldCount"`
	PageType   domain.PageType `json:"pageType"`
	Meta       domain.PageMeta `json:"meta"`
}
