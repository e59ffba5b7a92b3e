// Package sanitize strips page markup down to what a language model needs
// to see and estimates its token cost.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/testforge/smartfill/internal/domain"
)

// DefaultMaxChars bounds the cleaned HTML handed to a model.
const DefaultMaxChars = 100000

var (
	// Removed in this order, non-greedy and case-insensitive. The tag name
	// must end at whitespace, a slash or '>' so <svg-icon> does not open a
	// block.
	blockPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script(?:[\s/][^>]*)?>.*?</script\s*>`),
		regexp.MustCompile(`(?is)<style(?:[\s/][^>]*)?>.*?</style\s*>`),
		regexp.MustCompile(`(?is)<noscript(?:[\s/][^>]*)?>.*?</noscript\s*>`),
		regexp.MustCompile(`(?s)<!--.*?-->`),
		regexp.MustCompile(`(?is)<svg(?:[\s/][^>]*)?>.*?</svg\s*>`),
	}

	// Leftover tags: unterminated openers, tags cut off at the end of the
	// input, and custom elements whose name starts with a block name. Only
	// the tag goes, never the markup after it.
	strayOpen       = regexp.MustCompile(`(?i)<(?:script|style|noscript|svg)[^>]*(?:>|$)`)
	strayClose      = regexp.MustCompile(`(?i)</(?:script|style|noscript|svg)[^>]*(?:>|$)`)
	danglingComment = regexp.MustCompile(`(?s)<!--.*`)

	whitespace = regexp.MustCompile(`[\s\p{Zs}\x{FEFF}]+`)

	formTag    = regexp.MustCompile(`(?i)<form\b`)
	controlTag = regexp.MustCompile(`(?i)<(?:input|select|textarea)\b`)
)

// Result is a sanitized page.
type Result struct {
	// HTML is the cleaned markup, truncated to the configured bound.
	HTML      string
	Truncated bool
	Stats     domain.ContentStats
}

// Sanitizer cleans raw HTML for model analysis.
type Sanitizer struct {
	maxChars int
}

// New creates a Sanitizer. A non-positive maxChars uses DefaultMaxChars.
func New(maxChars int) *Sanitizer {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Sanitizer{maxChars: maxChars}
}

// Sanitize removes scripts, styles, noscript blocks, comments and inline SVG,
// collapses whitespace and truncates. Stats describe the cleaned text before
// truncation so the budget check sees the real size.
func (s *Sanitizer) Sanitize(raw string) Result {
	cleaned := Clean(raw)

	stats := domain.ContentStats{
		OriginalSize:    utf8.RuneCountInString(raw),
		CleanedSize:     utf8.RuneCountInString(cleaned),
		EstimatedTokens: EstimateTokens(cleaned),
		FormCount:       len(formTag.FindAllStringIndex(cleaned, -1)),
		InputCount:      len(controlTag.FindAllStringIndex(cleaned, -1)),
	}

	out := Truncate(cleaned, s.maxChars)

	return Result{
		HTML:      out,
		Truncated: len(out) < len(cleaned),
		Stats:     stats,
	}
}

// Clean applies the removal rules until nothing changes, so removals cannot
// splice a new opening tag together.
func Clean(raw string) string {
	out := raw
	for {
		prev := out
		for _, re := range blockPatterns {
			out = re.ReplaceAllString(out, "")
		}
		out = danglingComment.ReplaceAllString(out, "")
		out = strayOpen.ReplaceAllString(out, "")
		out = strayClose.ReplaceAllString(out, "")
		if out == prev {
			break
		}
	}

	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// EstimateTokens approximates the token count of text:
// ceil(ASCII letters/4) + CJK ideographs + ceil(other characters/2).
func EstimateTokens(text string) int {
	var letters, cjk, other int
	for _, r := range text {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letters++
		case r >= 0x4E00 && r <= 0x9FA5:
			cjk++
		default:
			other++
		}
	}
	return ceilDiv(letters, 4) + cjk + ceilDiv(other, 2)
}

// Truncate cuts s to at most maxChars characters, backing up to the end of
// the last tag when one closes within the final 1000 characters.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}

	runes := []rune(s)
	cut := maxChars
	for i := maxChars - 1; i > maxChars-1000 && i > 0; i-- {
		if runes[i] == '>' {
			cut = i + 1
			break
		}
	}
	return string(runes[:cut])
}

// CheckBudget fails when the estimated tokens exceed maxContentSize
// thousand tokens.
func CheckBudget(stats domain.ContentStats, maxContentSize int) error {
	limit := maxContentSize * 1000
	if stats.EstimatedTokens > limit {
		return domain.ErrContentTooLarge(stats.EstimatedTokens, limit)
	}
	return nil
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
