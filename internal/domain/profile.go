package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Profile limits
const (
	MaxProfileNameLength = 50
	MaxProfileInfoLength = 1000
)

// Profile is a user-supplied identity: a short name and free text.
type Profile struct {
	Name      string    `json:"name" yaml:"name"`
	Info      string    `json:"info" yaml:"info"`
	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"-"`
}

// Validate checks the profile limits.
func (p *Profile) Validate() error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return ErrValidationField("name", "profile name is required")
	}
	if utf8.RuneCountInString(name) > MaxProfileNameLength {
		return ErrValidationField("name", "profile name must be at most 50 characters")
	}
	if utf8.RuneCountInString(p.Info) > MaxProfileInfoLength {
		return ErrValidationField("info", "profile info must be at most 1000 characters")
	}
	return nil
}

// NameCandidates keeps both sources of a person's name so the caller can
// pick a precedence explicitly.
type NameCandidates struct {
	ProfileFirst string `json:"profileFirst,omitempty"`
	ProfileLast  string `json:"profileLast,omitempty"`
	ProfileFull  string `json:"profileFull,omitempty"`
	InfoName     string `json:"infoName,omitempty"`
}

// ParsedProfileInfo maps semantic keys to values extracted from a profile.
// An absent key means nothing matched.
type ParsedProfileInfo struct {
	Values         map[SemanticLabel]string `json:"values"`
	NameCandidates NameCandidates           `json:"nameCandidates"`
}

// Get returns the value stored for label.
func (p ParsedProfileInfo) Get(label SemanticLabel) (string, bool) {
	if p.Values == nil {
		return "", false
	}
	v, ok := p.Values[label]
	return v, ok
}
