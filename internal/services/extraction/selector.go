package extraction

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// attrValueEscaper quotes a value for a double-quoted CSS attribute selector.
var attrValueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// GenerateSelector builds a CSS selector for a form control.
//
// Precedence: #id, then [name="..."], then a structural path from <body>
// (exclusive) down to the element. Each path segment is the lower-case tag
// plus its classes, with :nth-child(k) appended only when the parent has more
// than one child of the same tag; k counts same-tag siblings from 1.
// Uniqueness is not guaranteed.
func GenerateSelector(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}

	if id := attr(n, "id"); id != "" {
		return "#" + id
	}
	if name, ok := attrOK(n, "name"); ok && name != "" {
		return fmt.Sprintf(`[name="%s"]`, attrValueEscaper.Replace(name))
	}

	var segments []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		tag := strings.ToLower(cur.Data)
		if tag == "body" || tag == "html" {
			break
		}

		segment := tag
		if classes := strings.Fields(attr(cur, "class")); len(classes) > 0 {
			segment += "." + strings.Join(classes, ".")
		}

		if idx, count := sameTagPosition(cur); count > 1 {
			segment += fmt.Sprintf(":nth-child(%d)", idx)
		}

		segments = append(segments, segment)
	}

	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	return strings.Join(segments, " > ")
}

// SelectorFor is GenerateSelector over the first node of a goquery selection.
func SelectorFor(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	return GenerateSelector(s.Get(0))
}

// sameTagPosition returns the 1-based index of n among its parent's element
// children with the same tag, and how many such children exist.
func sameTagPosition(n *html.Node) (index, count int) {
	if n.Parent == nil {
		return 1, 1
	}
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || !strings.EqualFold(c.Data, n.Data) {
			continue
		}
		count++
		if c == n {
			index = count
		}
	}
	return index, count
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}
