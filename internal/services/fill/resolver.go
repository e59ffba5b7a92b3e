// Package fill joins classified fields with parsed profile values to build
// the selector to value map handed to the injector.
package fill

import (
	"strings"

	"github.com/testforge/smartfill/internal/domain"
)

// DemoPassword is what password fields resolve to. It exists so demo forms
// can be submitted end to end; a product that fills real credentials must
// replace it with an explicit, user-approved secret source.
const DemoPassword = "DemoPass123!"

// hintKeywords recover a label from the visible text of an unknown field.
// Order matters: "email address" must resolve to email, not address.
var hintKeywords = []struct {
	label    domain.SemanticLabel
	keywords []string
}{
	{domain.LabelEmail, []string{"email", "e-mail", "邮箱", "邮件"}},
	{domain.LabelPhone, []string{"phone", "tel", "mobile", "电话", "手机"}},
	{domain.LabelFullName, []string{"name", "姓名", "名字"}},
}

// InferFromHint maps free label text to a semantic label, or LabelUnknown.
func InferFromHint(hint string) domain.SemanticLabel {
	h := strings.ToLower(hint)
	for _, k := range hintKeywords {
		for _, kw := range k.keywords {
			if strings.Contains(h, kw) {
				return k.label
			}
		}
	}
	return domain.LabelUnknown
}

// Resolve returns the fill value for a label. The second result is false
// when the field should be skipped.
func Resolve(label domain.SemanticLabel, info domain.ParsedProfileInfo, hint string) (string, bool) {
	switch label {
	case domain.LabelPassword, domain.LabelConfirmPassword:
		return DemoPassword, true
	case domain.LabelUnknown, "":
		inferred := InferFromHint(hint)
		if inferred == domain.LabelUnknown {
			return "", false
		}
		return Resolve(inferred, info, "")
	}

	v, ok := info.Get(label)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}
