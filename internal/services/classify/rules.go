// Package classify assigns semantic labels to form fields, either with local
// heuristics or by validating a remote model's analysis.
package classify

import (
	"strings"

	"github.com/testforge/smartfill/internal/domain"
)

// fieldText is the lower-cased view of a field the rules match against.
type fieldText struct {
	name         string
	placeholder  string
	label        string
	autocomplete string
	typ          string
}

func newFieldText(f domain.PageField) fieldText {
	typ := strings.ToLower(f.Type)
	if typ == "" {
		typ = "text"
	}
	return fieldText{
		name:         strings.ToLower(f.Name),
		placeholder:  strings.ToLower(f.Placeholder),
		label:        strings.ToLower(f.Label),
		autocomplete: strings.ToLower(f.Autocomplete),
		typ:          typ,
	}
}

// mentions reports whether any of the human-facing attributes contains one of subs.
func (t fieldText) mentions(subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(t.name, s) || strings.Contains(t.placeholder, s) || strings.Contains(t.label, s) {
			return true
		}
	}
	return false
}

func (t fieldText) autocompletes(subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(t.autocomplete, s) {
			return true
		}
	}
	return false
}

// Rule pairs a predicate with the label it assigns.
type Rule struct {
	Label domain.SemanticLabel
	Match func(t fieldText) bool
}

func isNameFamily(t fieldText) bool { return t.mentions("name") }

// Rules is the ordered local classification table. The first matching rule wins.
var Rules = []Rule{
	{domain.LabelEmail, func(t fieldText) bool {
		return t.typ == "email" || t.mentions("email") || t.autocompletes("email")
	}},
	{domain.LabelFirstName, func(t fieldText) bool {
		return isNameFamily(t) && t.mentions("first")
	}},
	{domain.LabelLastName, func(t fieldText) bool {
		return isNameFamily(t) && t.mentions("last")
	}},
	{domain.LabelFullName, isNameFamily},
	{domain.LabelPhone, func(t fieldText) bool {
		return t.typ == "tel" || t.mentions("phone") || t.autocompletes("tel")
	}},
	{domain.LabelAddress, func(t fieldText) bool {
		// address-level1/2 are state and city
		return t.mentions("address") ||
			(t.autocompletes("address") && !t.autocompletes("address-level"))
	}},
	{domain.LabelDateOfBirth, func(t fieldText) bool {
		return t.typ == "date" || t.mentions("birth")
	}},
	{domain.LabelConfirmPassword, func(t fieldText) bool {
		return t.typ == "password" && t.mentions("confirm", "repeat", "again")
	}},
	{domain.LabelPassword, func(t fieldText) bool {
		return t.typ == "password"
	}},
	{domain.LabelCity, func(t fieldText) bool {
		return t.mentions("city", "town") || t.autocompletes("address-level2")
	}},
	{domain.LabelState, func(t fieldText) bool {
		return t.mentions("state", "province", "region") || t.autocompletes("address-level1")
	}},
	{domain.LabelZipCode, func(t fieldText) bool {
		return t.mentions("zip", "postal", "postcode") || t.autocompletes("postal-code")
	}},
	{domain.LabelCountry, func(t fieldText) bool {
		return t.mentions("country") || t.autocompletes("country")
	}},
	{domain.LabelCompany, func(t fieldText) bool {
		return t.mentions("company", "organization", "organisation", "employer") ||
			(t.autocompletes("organization") && !t.autocompletes("organization-title"))
	}},
	{domain.LabelJobTitle, func(t fieldText) bool {
		return t.mentions("job", "position", "occupation") || t.autocompletes("organization-title")
	}},
	{domain.LabelWebsite, func(t fieldText) bool {
		return t.typ == "url" || t.mentions("website", "homepage") || t.autocompletes("url")
	}},
}

// Label runs the rule table over f.
func Label(f domain.PageField) domain.SemanticLabel {
	t := newFieldText(f)
	for _, r := range Rules {
		if r.Match(t) {
			return r.Label
		}
	}
	return domain.LabelUnknown
}
