package extraction

import (
	"strings"

	"github.com/testforge/smartfill/internal/domain"
)

// InferPageType guesses the purpose of a page from its URL, then its title,
// then keywords in the body text.
func InferPageType(pageURL, title, bodyText string) domain.PageType {
	u := strings.ToLower(pageURL)
	t := strings.ToLower(title)
	body := strings.ToLower(bodyText)

	switch {
	case containsAny(u, "login", "signin"):
		return domain.PageTypeLogin
	case containsAny(u, "register", "signup"):
		return domain.PageTypeRegistration
	case strings.Contains(u, "contact"):
		return domain.PageTypeContact
	case containsAny(u, "checkout", "billing"):
		return domain.PageTypeCheckout
	case containsAny(u, "profile", "account"):
		return domain.PageTypeProfile
	}

	switch {
	case containsAny(t, "login", "sign in"):
		return domain.PageTypeLogin
	case containsAny(t, "register", "sign up"):
		return domain.PageTypeRegistration
	case strings.Contains(t, "contact"):
		return domain.PageTypeContact
	case strings.Contains(body, "login") && strings.Contains(body, "password"):
		return domain.PageTypeLogin
	case strings.Contains(body, "register") && strings.Contains(body, "email"):
		return domain.PageTypeRegistration
	}

	return domain.PageTypeGeneral
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
