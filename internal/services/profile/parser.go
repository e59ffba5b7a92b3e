// Package profile extracts structured values from free-text user profiles.
package profile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/testforge/smartfill/internal/domain"
)

// NamePrecedence decides which name source fills firstName and fullName
// when both the profile name and the info text yield one.
type NamePrecedence int

const (
	// PreferProfileName splits profile.name and uses the info text only
	// when the name is empty.
	PreferProfileName NamePrecedence = iota
	// PreferInfoText uses a name found in the info text ("我叫X", "name is X")
	// for firstName and fullName.
	PreferInfoText
)

// ParsePrecedence maps "info" to PreferInfoText and anything else to
// PreferProfileName.
func ParsePrecedence(s string) NamePrecedence {
	if strings.EqualFold(strings.TrimSpace(s), "info") {
		return PreferInfoText
	}
	return PreferProfileName
}

// Options configures a Parser.
type Options struct {
	NamePrecedence NamePrecedence
}

// Parser turns a profile into ParsedProfileInfo. It holds no state between
// calls, so parsing the same profile twice yields the same result.
type Parser struct {
	opts Options
}

// NewParser creates a parser.
func NewParser(opts Options) *Parser {
	return &Parser{opts: opts}
}

var defaultParser = NewParser(Options{})

// Parse uses the default options.
func Parse(p domain.Profile) domain.ParsedProfileInfo {
	return defaultParser.Parse(p)
}

var (
	emailRe   = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe   = regexp.MustCompile(`\+?[\d\s\-()]{10,}`)
	websiteRe = regexp.MustCompile(`https?://[^\s]+`)

	dateShapeRe = regexp.MustCompile(`^\(?\d{4}[-/]\d{1,2}[-/]\d{1,2}\)?$|^\d{1,2}[-/]\d{1,2}[-/]\d{4}$`)
	birthRe     = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	birthCJKRe  = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)

	cnNameRe      = regexp.MustCompile(`我叫([^，,。\s]+)`)
	cnShortNameRe = regexp.MustCompile(`叫([^，,。\s]+)`)
	enNameRe      = regexp.MustCompile(`(?i)name\s+is\s+([a-zA-Z][a-zA-Z ]*)`)

	countryRe = regexp.MustCompile(`(?i)\b(united states|united kingdom|australia|canada|china|usa|uk)\b`)

	companyRe  = regexp.MustCompile(`(?i)\b(?:company|employer|organi[sz]ation)\s*[:：]\s*([^,，;；\n]+)`)
	jobTitleRe = regexp.MustCompile(`(?i)\b(?:job title|title|position|occupation)\s*[:：]\s*([^,，;；\n]+)`)
)

// Parse extracts every recognized value from p.
func (ps *Parser) Parse(p domain.Profile) domain.ParsedProfileInfo {
	info := p.Info
	values := make(map[domain.SemanticLabel]string)

	set := func(label domain.SemanticLabel, v string) {
		if v = strings.TrimSpace(v); v != "" {
			values[label] = v
		}
	}

	candidates := nameCandidates(p.Name, info)
	ps.applyNames(candidates, set)

	if m := emailRe.FindString(info); m != "" {
		set(domain.LabelEmail, m)
	}
	set(domain.LabelPhone, extractPhone(info))

	addr := extractAddress(info)
	set(domain.LabelAddress, addr.full)
	set(domain.LabelCity, addr.city)
	set(domain.LabelState, addr.state)
	set(domain.LabelZipCode, addr.zip)

	set(domain.LabelDateOfBirth, extractBirthDate(info))
	set(domain.LabelCountry, extractCountry(info))
	set(domain.LabelWebsite, extractWebsite(info))

	if m := companyRe.FindStringSubmatch(info); m != nil {
		set(domain.LabelCompany, m[1])
	}
	if m := jobTitleRe.FindStringSubmatch(info); m != nil {
		set(domain.LabelJobTitle, m[1])
	}

	return domain.ParsedProfileInfo{Values: values, NameCandidates: candidates}
}

func nameCandidates(name, info string) domain.NameCandidates {
	var c domain.NameCandidates

	full := strings.TrimSpace(name)
	c.ProfileFull = full
	if tokens := strings.Fields(full); len(tokens) >= 2 {
		c.ProfileFirst = tokens[0]
		c.ProfileLast = strings.Join(tokens[1:], " ")
	}

	c.InfoName = extractInfoName(info)
	return c
}

func extractInfoName(info string) string {
	if m := cnNameRe.FindStringSubmatch(info); m != nil {
		return m[1]
	}
	if m := cnShortNameRe.FindStringSubmatch(info); m != nil {
		return m[1]
	}
	if m := enNameRe.FindStringSubmatch(info); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func (ps *Parser) applyNames(c domain.NameCandidates, set func(domain.SemanticLabel, string)) {
	useInfo := c.InfoName != "" && (ps.opts.NamePrecedence == PreferInfoText || c.ProfileFull == "")
	if useInfo {
		set(domain.LabelFullName, c.InfoName)
		set(domain.LabelFirstName, c.InfoName)
		return
	}
	set(domain.LabelFullName, c.ProfileFull)
	set(domain.LabelFirstName, c.ProfileFirst)
	set(domain.LabelLastName, c.ProfileLast)
}

// extractPhone returns the first digit run that is not a date, keeping only
// digits and a leading '+'.
func extractPhone(info string) string {
	for _, run := range phoneRe.FindAllString(info, -1) {
		trimmed := strings.TrimSpace(run)
		if dateShapeRe.MatchString(trimmed) {
			continue
		}
		var b strings.Builder
		for i, r := range trimmed {
			if r == '+' && i == 0 {
				b.WriteRune(r)
			}
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
		phone := b.String()
		if digits := strings.TrimPrefix(phone, "+"); len(digits) >= 7 {
			return phone
		}
	}
	return ""
}

func extractBirthDate(info string) string {
	for _, re := range []*regexp.Regexp{birthRe, birthCJKRe} {
		for _, m := range re.FindAllStringSubmatch(info, -1) {
			year, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			day, _ := strconv.Atoi(m[3])
			if month < 1 || month > 12 || day < 1 || day > 31 {
				continue
			}
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
		}
	}
	return ""
}

var chineseCountries = []struct {
	name string
	code string
}{
	{"中国", "CN"},
	{"澳大利亚", "AU"},
	{"美国", "US"},
	{"英国", "GB"},
	{"加拿大", "CA"},
}

var countryCodes = map[string]string{
	"china":          "CN",
	"australia":      "AU",
	"usa":            "US",
	"united states":  "US",
	"uk":             "GB",
	"united kingdom": "GB",
	"canada":         "CA",
}

// CountryCode maps a country keyword to its ISO code. Unmapped keywords
// are returned lower-cased.
func CountryCode(keyword string) string {
	k := strings.ToLower(strings.TrimSpace(keyword))
	if code, ok := countryCodes[k]; ok {
		return code
	}
	return k
}

// extractCountry returns the code of the earliest country mention.
func extractCountry(info string) string {
	best, bestAt := "", -1
	if loc := countryRe.FindStringSubmatchIndex(info); loc != nil {
		best, bestAt = CountryCode(info[loc[2]:loc[3]]), loc[0]
	}
	for _, c := range chineseCountries {
		if at := strings.Index(info, c.name); at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt = c.code, at
		}
	}
	return best
}

func extractWebsite(info string) string {
	m := websiteRe.FindString(info)
	return strings.TrimRight(m, ".,;:!?)]}'\"，。；")
}
