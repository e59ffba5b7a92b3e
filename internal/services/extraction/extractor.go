package extraction

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/testforge/smartfill/internal/domain"
)

// fieldQuery matches every form control; non-fillable input types are
// filtered afterwards so the type default can be applied first.
const fieldQuery = "input, select, textarea"

var skippedTypes = map[string]bool{
	"hidden": true,
	"submit": true,
	"button": true,
}

// Extractor scrapes forms and fields from a parsed document.
type Extractor struct{}

// NewExtractor creates a new field extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ParseHTML parses raw markup into a queryable document.
func ParseHTML(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return doc, nil
}

// ParseHTMLString is ParseHTML over a string.
func ParseHTMLString(raw string) (*goquery.Document, error) {
	return ParseHTML(strings.NewReader(raw))
}

// ExtractPage extracts forms, title, meta and page type.
func (e *Extractor) ExtractPage(doc *goquery.Document, pageURL string) domain.PageData {
	title := strings.TrimSpace(doc.Find("title").First().Text())

	page := domain.PageData{
		URL:   pageURL,
		Title: title,
		Forms: e.ExtractFields(doc, pageURL),
		Meta:  extractMeta(doc),
	}
	page.PageType = InferPageType(pageURL, title, doc.Find("body").Text())

	return page
}

// ExtractFields returns one record per <form>, in document order. Forms with
// no fillable controls are kept with an empty field list.
func (e *Extractor) ExtractFields(doc *goquery.Document, pageURL string) []domain.FormRecord {
	base, _ := url.Parse(pageURL)

	forms := make([]domain.FormRecord, 0)
	doc.Find("form").Each(func(i int, form *goquery.Selection) {
		record := domain.FormRecord{
			Index:  i,
			Action: resolveAction(base, form),
			Method: "get",
			Fields: make([]domain.PageField, 0),
		}
		if method := strings.TrimSpace(form.AttrOr("method", "")); method != "" {
			record.Method = strings.ToLower(method)
		}

		form.Find(fieldQuery).Each(func(_ int, s *goquery.Selection) {
			field, ok := e.extractField(doc, s)
			if ok {
				record.Fields = append(record.Fields, field)
			}
		})

		forms = append(forms, record)
	})

	return forms
}

func (e *Extractor) extractField(doc *goquery.Document, s *goquery.Selection) (domain.PageField, bool) {
	fieldType := controlType(s)
	if skippedTypes[fieldType] {
		return domain.PageField{}, false
	}

	_, required := s.Attr("required")

	field := domain.PageField{
		Selector:     SelectorFor(s),
		Type:         fieldType,
		Name:         s.AttrOr("name", ""),
		ID:           s.AttrOr("id", ""),
		Placeholder:  s.AttrOr("placeholder", ""),
		Value:        controlValue(s),
		Required:     required,
		Autocomplete: s.AttrOr("autocomplete", ""),
	}
	field.Label = FindLabel(doc, s, field.ID, field.Value)

	return field, true
}

// FindLabel resolves the human-readable label of a control:
// <label for=id>, then the wrapping <label> minus the control's own value,
// then a preceding <label> or <span> sibling, then aria-label.
func FindLabel(doc *goquery.Document, s *goquery.Selection, id, value string) string {
	if id != "" {
		var label *goquery.Selection
		doc.Find("label[for]").EachWithBreak(func(_ int, l *goquery.Selection) bool {
			if l.AttrOr("for", "") == id {
				label = l
				return false
			}
			return true
		})
		if label != nil {
			return strings.TrimSpace(label.Text())
		}
	}

	if parent := s.Closest("label"); parent.Length() > 0 {
		text := parent.Text()
		if value != "" {
			text = strings.Replace(text, value, "", 1)
		}
		return strings.TrimSpace(text)
	}

	if prev := s.Prev(); prev.Length() > 0 {
		switch goquery.NodeName(prev) {
		case "label", "span":
			return strings.TrimSpace(prev.Text())
		}
	}

	return s.AttrOr("aria-label", "")
}

// controlType mirrors the DOM's HTMLElement.type for form controls.
func controlType(s *goquery.Selection) string {
	switch goquery.NodeName(s) {
	case "select":
		if _, multiple := s.Attr("multiple"); multiple {
			return "select-multiple"
		}
		return "select-one"
	case "textarea":
		return "textarea"
	}

	t := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
	if t == "" {
		return "text"
	}
	return t
}

func controlValue(s *goquery.Selection) string {
	switch goquery.NodeName(s) {
	case "textarea":
		return s.Text()
	case "select":
		opt := s.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = s.Find("option").First()
		}
		if v, ok := opt.Attr("value"); ok {
			return v
		}
		return strings.TrimSpace(opt.Text())
	}
	return s.AttrOr("value", "")
}

func resolveAction(base *url.URL, form *goquery.Selection) string {
	action := strings.TrimSpace(form.AttrOr("action", ""))
	if base == nil || base.Scheme == "" {
		return action
	}
	ref, err := url.Parse(action)
	if err != nil {
		return action
	}
	return base.ResolveReference(ref).String()
}

func extractMeta(doc *goquery.Document) domain.PageMeta {
	content := func(name string) string {
		var v string
		doc.Find("meta[name]").EachWithBreak(func(_ int, m *goquery.Selection) bool {
			if strings.EqualFold(m.AttrOr("name", ""), name) {
				v = m.AttrOr("content", "")
				return false
			}
			return true
		})
		return v
	}

	return domain.PageMeta{
		Description: content("description"),
		Keywords:    content("keywords"),
		Viewport:    content("viewport"),
		Language:    doc.Find("html").AttrOr("lang", ""),
	}
}
