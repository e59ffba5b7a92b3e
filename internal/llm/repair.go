package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/testforge/smartfill/internal/domain"
)

var (
	openFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	closeFence = regexp.MustCompile("\\s*```$")
	objectSpan = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON recovers a JSON object from model output. The strategies run in
// order and the first that yields strictly valid JSON wins:
//  1. trim and strip a leading ```json / ``` fence and a trailing ``` fence
//  2. the greedy {...} span of the unfenced text
//  3. first '{' to last '}' of the original trimmed text
//
// When all fail the error carries the first 200 characters of raw.
func ExtractJSON(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, domain.ErrResponseParse(raw, errors.New("empty response"))
	}

	unfenced := closeFence.ReplaceAllString(openFence.ReplaceAllString(trimmed, ""), "")
	unfenced = strings.TrimSpace(unfenced)
	if json.Valid([]byte(unfenced)) && isObject(unfenced) {
		return []byte(unfenced), nil
	}

	var lastErr error
	if span := objectSpan.FindString(unfenced); span != "" {
		if json.Valid([]byte(span)) {
			return []byte(span), nil
		}
		lastErr = syntaxError(span)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), nil
		}
		lastErr = syntaxError(candidate)
	}

	if lastErr == nil {
		lastErr = errors.New("no JSON object found")
	}
	return nil, domain.ErrResponseParse(raw, lastErr)
}

// ParseModelResponse returns the repaired JSON object as a generic map.
func ParseModelResponse(raw string) (map[string]any, error) {
	data, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, domain.ErrResponseParse(raw, err)
	}
	return out, nil
}

// DecodeModelResponse repairs raw and unmarshals it into v.
func DecodeModelResponse(raw string, v any) error {
	data, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.ErrResponseShape("model response has an unexpected shape").WithCause(err)
	}
	return nil
}

func isObject(s string) bool {
	return strings.HasPrefix(s, "{")
}

func syntaxError(s string) error {
	var v any
	return json.Unmarshal([]byte(s), &v)
}
