package profile

import (
	"regexp"
	"strings"
)

type address struct {
	full  string
	city  string
	state string
	zip   string
}

// Address starts, tried in order. The first two follow the locale markers
// seen in real profiles: a unit prefix, then a CJK street character.
var (
	unitStartRe   = regexp.MustCompile(`(?i)\b(?:unit|apt|apartment|suite|flat)\s*\d+`)
	cjkStreetRe   = regexp.MustCompile(`[^,，。;；\s:：]*(?:街|[路道]\d+号)[^,，。;；\s]*`)
	streetStartRe = regexp.MustCompile(`(?i)\b\d+[^,\n]*?\b(?:street|st|avenue|ave|road|rd|drive|dr|lane|ln|boulevard|blvd|way|place|pl|court|ct|highway|hwy)\b`)

	stateZipRe  = regexp.MustCompile(`^(?:(.+?)\s+)?([A-Za-z]+)\s+(\d{4,6}(?:-\d{4})?)$`)
	fieldKeyRe  = regexp.MustCompile(`(?i)^[a-z ]+\s*[:：]`)
	maxSegments = 5
)

func extractAddress(info string) address {
	if loc := unitStartRe.FindStringIndex(info); loc != nil {
		return splitAddress(collectSegments(info[loc[0]:]))
	}
	if m := cjkStreetRe.FindString(info); m != "" {
		return address{full: m}
	}
	if loc := streetStartRe.FindStringIndex(info); loc != nil {
		return splitAddress(collectSegments(info[loc[0]:]))
	}
	return address{}
}

// collectSegments takes comma-separated segments from the start of an
// address until something that is clearly another profile field.
func collectSegments(rest string) []string {
	if i := strings.IndexAny(rest, "\n;；。"); i >= 0 {
		rest = rest[:i]
	}

	var segments []string
	for i, seg := range strings.Split(rest, ",") {
		seg = strings.TrimSpace(seg)
		if i > 0 && !isAddressSegment(seg) {
			break
		}
		segments = append(segments, seg)
		if len(segments) == maxSegments || (i > 0 && extractCountry(seg) != "") {
			break
		}
	}
	return segments
}

func isAddressSegment(seg string) bool {
	if seg == "" || strings.ContainsAny(seg, "@:：") || fieldKeyRe.MatchString(seg) {
		return false
	}
	return extractPhone(seg) == ""
}

// splitAddress derives city, state and zip code. A "STATE 1234" segment
// among the last two marks the state and zip code and the segment before it
// (or the words before the state) is the city. Without one, an address of
// three or more segments takes its third-from-last segment as the city.
func splitAddress(segments []string) address {
	a := address{full: strings.Join(segments, ", ")}
	n := len(segments)
	if n < 2 {
		return a
	}

	for k := n - 1; k >= n-2 && k >= 1; k-- {
		m := stateZipRe.FindStringSubmatch(segments[k])
		if m == nil {
			continue
		}
		a.state, a.zip = m[2], m[3]
		switch {
		case m[1] != "":
			a.city = m[1]
		case k-1 >= 1:
			a.city = segments[k-1]
		}
		return a
	}

	if n >= 3 {
		a.city = segments[n-3]
	}
	return a
}
