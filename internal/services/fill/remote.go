package fill

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/internal/llm"
)

const fillSystemPrompt = `You generate autofill values for web forms from a user's profile. Answer with JSON only.`

// promptField is the subset of a classified field shown to the model.
type promptField struct {
	Selector      string `json:"selector"`
	Type          string `json:"type"`
	SemanticLabel string `json:"semanticLabel"`
	Label         string `json:"label,omitempty"`
	Placeholder   string `json:"placeholder,omitempty"`
	Required      bool   `json:"required"`
}

// BuildFillPrompt asks a model for a selector to value map.
func BuildFillPrompt(profile domain.Profile, fields []domain.ClassifiedField) llm.Prompt {
	pf := make([]promptField, 0, len(fields))
	for _, f := range fields {
		pf = append(pf, promptField{
			Selector:      f.Selector,
			Type:          f.Type,
			SemanticLabel: string(f.SemanticLabel),
			Label:         f.Label,
			Placeholder:   f.Placeholder,
			Required:      f.Required,
		})
	}
	data, _ := json.MarshalIndent(pf, "", "  ")

	var b strings.Builder
	b.WriteString("Based on the user profile information and identified form fields, generate appropriate fill values.\n\n")
	b.WriteString("User Profile:\n")
	fmt.Fprintf(&b, "Name: %s\n", profile.Name)
	fmt.Fprintf(&b, "Info: %s\n\n", profile.Info)
	b.WriteString("Form Fields:\n")
	b.Write(data)
	b.WriteString("\n\nReturn a JSON object with field selectors as keys and fill values as values (no additional text or formatting):\n")
	b.WriteString("{\n  \"selector1\": \"fill value 1\",\n  \"selector2\": \"fill value 2\"\n}\n\n")
	b.WriteString("Only include fields that can be confidently filled based on the profile information.")

	return llm.Prompt{System: fillSystemPrompt, User: b.String()}
}

// ValidateRemoteFillMap repairs the model output and keeps only entries for
// selectors that were asked about, with non-empty scalar values.
func ValidateRemoteFillMap(raw string, fields []domain.ClassifiedField) (domain.FillMap, error) {
	obj, err := llm.ParseModelResponse(raw)
	if err != nil {
		return nil, err
	}

	// some models wrap the map in {"fillData": {...}}
	if inner, ok := obj["fillData"].(map[string]any); ok && len(obj) == 1 {
		obj = inner
	}

	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Selector] = true
	}

	out := make(domain.FillMap)
	for selector, v := range obj {
		if !known[selector] {
			continue
		}
		var value string
		switch t := v.(type) {
		case string:
			value = t
		case float64:
			value = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			value = strconv.FormatBool(t)
		default:
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			out[selector] = value
		}
	}
	return out, nil
}
