package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/internal/llm"
)

const systemPrompt = `You are a form analysis assistant for a browser autofill tool.
You identify the semantic meaning of HTML form fields and answer with JSON only.`

const analysisSchema = `{
  "analysis": {
    "pageType": "login | registration | contact | checkout | profile | general",
    "forms": [
      {
        "formType": "registration | login | contact | checkout | general",
        "fields": [
          {
            "selector": "CSS selector for the field",
            "type": "input type (text, email, tel, etc.)",
            "semanticType": "one of: %s",
            "label": "visible label text if any",
            "required": boolean,
            "confidence": number between 0-1
          }
        ]
      }
    ],
    "totalFields": number
  }
}`

func labelVocabulary() string {
	names := make([]string, 0, len(domain.SemanticLabels))
	for _, l := range domain.SemanticLabels {
		names = append(names, string(l))
	}
	return strings.Join(names, ", ")
}

func schema() string {
	return fmt.Sprintf(analysisSchema, labelVocabulary())
}

// BuildFieldsPrompt asks a model to label the already extracted fields.
func BuildFieldsPrompt(page domain.PageData) llm.Prompt {
	data, _ := json.MarshalIndent(page, "", "  ")

	var b strings.Builder
	b.WriteString("Analyze the following HTML form structure and identify all form fields with their semantic meaning.\n\n")
	b.WriteString("Form Data:\n")
	b.Write(data)
	b.WriteString("\n\nReturn a JSON object with this exact structure (no additional text or formatting):\n")
	b.WriteString(schema())
	b.WriteString("\n\nUse the selectors exactly as given. Use \"unknown\" when a field's meaning is unclear.")

	return llm.Prompt{System: systemPrompt, User: b.String()}
}

// BuildContentPrompt asks a model to find and label the forms in sanitized page HTML.
func BuildContentPrompt(content domain.PageContent) llm.Prompt {
	var b strings.Builder
	b.WriteString("Analyze the following web page and identify every fillable form field with its semantic meaning.\n\n")
	fmt.Fprintf(&b, "URL: %s\n", content.URL)
	fmt.Fprintf(&b, "Title: %s\n", content.Title)
	if content.PageType != "" {
		fmt.Fprintf(&b, "Detected page type: %s\n", content.PageType)
	}
	fmt.Fprintf(&b, "Forms: %d, inputs: %d\n\n", content.Stats.FormCount, content.Stats.InputCount)
	b.WriteString("HTML:\n")
	b.WriteString(content.HTML)
	b.WriteString("\n\nReturn a JSON object with this exact structure (no additional text or formatting):\n")
	b.WriteString(schema())
	b.WriteString("\n\nSelectors must match a single element: prefer #id, then [name=\"...\"].")

	return llm.Prompt{System: systemPrompt, User: b.String()}
}
