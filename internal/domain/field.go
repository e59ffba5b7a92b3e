package domain

import "strings"

// PageField is one fillable form control as scraped from the page.
type PageField struct {
	Selector     string `json:"selector"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	ID           string `json:"id"`
	Placeholder  string `json:"placeholder"`
	Label        string `json:"label"`
	Value        string `json:"value"`
	Required     bool   `json:"required"`
	Autocomplete string `json:"autocomplete"`
}

// FormRecord groups the fields of one <form>. Records are rebuilt on every
// extraction pass and never reused across page changes.
type FormRecord struct {
	Index  int         `json:"index"`
	Action string      `json:"action"`
	Method string      `json:"method"`
	Fields []PageField `json:"fields"`
}

// PageMeta holds the document-level metadata collected with the forms.
type PageMeta struct {
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	Viewport    string `json:"viewport"`
	Language    string `json:"language"`
}

// PageType is the coarse purpose of a page.
type PageType string

const (
	PageTypeLogin        PageType = "login"
	PageTypeRegistration PageType = "registration"
	PageTypeContact      PageType = "contact"
	PageTypeCheckout     PageType = "checkout"
	PageTypeProfile      PageType = "profile"
	PageTypeGeneral      PageType = "general"
)

// FormType is the coarse purpose of a set of fields.
type FormType string

const (
	FormTypeLogin        FormType = "login"
	FormTypeRegistration FormType = "registration"
	FormTypeContact      FormType = "contact"
	FormTypeCheckout     FormType = "checkout"
	FormTypeGeneral      FormType = "general"
)

// PageData is the full extraction result for one page.
type PageData struct {
	URL      string       `json:"url"`
	Title    string       `json:"title"`
	Forms    []FormRecord `json:"forms"`
	Meta     PageMeta     `json:"meta"`
	PageType PageType     `json:"pageType"`
}

// FieldCount returns the number of fields across all forms.
func (p PageData) FieldCount() int {
	n := 0
	for _, f := range p.Forms {
		n += len(f.Fields)
	}
	return n
}

// AllFields flattens the fields of every form in document order.
func (p PageData) AllFields() []PageField {
	fields := make([]PageField, 0, p.FieldCount())
	for _, f := range p.Forms {
		fields = append(fields, f.Fields...)
	}
	return fields
}

// SemanticLabel is the inferred meaning of a field. The set is closed.
type SemanticLabel string

const (
	LabelEmail           SemanticLabel = "email"
	LabelFirstName       SemanticLabel = "firstName"
	LabelLastName        SemanticLabel = "lastName"
	LabelFullName        SemanticLabel = "fullName"
	LabelPhone           SemanticLabel = "phone"
	LabelAddress         SemanticLabel = "address"
	LabelCity            SemanticLabel = "city"
	LabelState           SemanticLabel = "state"
	LabelZipCode         SemanticLabel = "zipCode"
	LabelCountry         SemanticLabel = "country"
	LabelDateOfBirth     SemanticLabel = "dateOfBirth"
	LabelCompany         SemanticLabel = "company"
	LabelJobTitle        SemanticLabel = "jobTitle"
	LabelWebsite         SemanticLabel = "website"
	LabelPassword        SemanticLabel = "password"
	LabelConfirmPassword SemanticLabel = "confirmPassword"
	LabelUnknown         SemanticLabel = "unknown"
)

// SemanticLabels lists the vocabulary in a stable order.
var SemanticLabels = []SemanticLabel{
	LabelEmail, LabelFirstName, LabelLastName, LabelFullName, LabelPhone,
	LabelAddress, LabelCity, LabelState, LabelZipCode, LabelCountry,
	LabelDateOfBirth, LabelCompany, LabelJobTitle, LabelWebsite,
	LabelPassword, LabelConfirmPassword, LabelUnknown,
}

var labelNormalizer = strings.NewReplacer("_", "", "-", "", " ", "")

var labelAliases = map[string]SemanticLabel{
	"zip":        LabelZipCode,
	"postcode":   LabelZipCode,
	"postalcode": LabelZipCode,
	"name":       LabelFullName,
	"tel":        LabelPhone,
	"dob":        LabelDateOfBirth,
	"birthday":   LabelDateOfBirth,
	"url":        LabelWebsite,
}

// ParseSemanticLabel maps free text from a model onto the vocabulary.
// Matching ignores case; anything unrecognized becomes LabelUnknown.
func ParseSemanticLabel(s string) SemanticLabel {
	key := labelNormalizer.Replace(strings.ToLower(strings.TrimSpace(s)))
	for _, l := range SemanticLabels {
		if strings.ToLower(string(l)) == key {
			return l
		}
	}
	if l, ok := labelAliases[key]; ok {
		return l
	}
	return LabelUnknown
}

// IsKnown reports whether l carries meaning.
func (l SemanticLabel) IsKnown() bool {
	return l != "" && l != LabelUnknown
}

// IsSecret reports whether l is a credential label.
func (l SemanticLabel) IsSecret() bool {
	return l == LabelPassword || l == LabelConfirmPassword
}
