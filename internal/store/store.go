// Package store persists the user's settings and profiles on a key-value
// backend. Values are read on every call and never cached.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/testforge/smartfill/internal/crypto"
	"github.com/testforge/smartfill/internal/domain"
)

// Storage keys.
const (
	KeyProfiles = "profiles"
	KeySettings = "settings"
)

// KV is the persistence contract every backend satisfies.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Updater is a KV that can read-modify-write one key atomically. Backends
// shared between processes implement it; the Store falls back to its own
// lock otherwise.
type Updater interface {
	Update(ctx context.Context, key string, fn func(current []byte, ok bool) ([]byte, error)) error
}

// Store is the typed view over a KV.
type Store struct {
	kv    KV
	now   func() time.Time
	strip *bluemonday.Policy

	// seals the API key at rest when set
	sealer *crypto.Sealer

	// serializes read-modify-write of the profile list
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithSealer encrypts the stored API key. A nil sealer leaves it as is.
func WithSealer(sealer *crypto.Sealer) Option {
	return func(s *Store) { s.sealer = sealer }
}

// New wraps kv.
func New(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:    kv,
		now:   time.Now,
		strip: bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profiles returns every saved profile in insertion order.
func (s *Store) Profiles(ctx context.Context) ([]domain.Profile, error) {
	data, ok, err := s.kv.Get(ctx, KeyProfiles)
	if err != nil {
		return nil, domain.ErrStore(err)
	}
	return decodeProfiles(data, ok)
}

func decodeProfiles(data []byte, ok bool) ([]domain.Profile, error) {
	if !ok {
		return []domain.Profile{}, nil
	}

	var profiles []domain.Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, domain.ErrStore(err).WithDetails("profiles value is not a JSON array")
	}
	if profiles == nil {
		profiles = []domain.Profile{}
	}
	return profiles, nil
}

// GetProfile returns the profile with the given name.
func (s *Store) GetProfile(ctx context.Context, name string) (domain.Profile, error) {
	profiles, err := s.Profiles(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	name = strings.TrimSpace(name)
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return domain.Profile{}, domain.ErrProfileNotFound(name)
}

// SaveProfile validates p and inserts it, or replaces the profile with the
// same name. Markup is stripped from both fields before validation.
func (s *Store) SaveProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	p.Name = strings.TrimSpace(s.plain(p.Name))
	p.Info = strings.TrimSpace(s.plain(p.Info))
	if err := p.Validate(); err != nil {
		return domain.Profile{}, err
	}

	err := s.updateProfiles(ctx, func(profiles []domain.Profile) ([]domain.Profile, error) {
		now := s.now().UTC()
		p.UpdatedAt = now
		for i, existing := range profiles {
			if existing.Name == p.Name {
				p.CreatedAt = existing.CreatedAt
				profiles[i] = p
				return profiles, nil
			}
		}
		p.CreatedAt = now
		return append(profiles, p), nil
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// DeleteProfile removes the named profile.
func (s *Store) DeleteProfile(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	return s.updateProfiles(ctx, func(profiles []domain.Profile) ([]domain.Profile, error) {
		kept := profiles[:0]
		found := false
		for _, p := range profiles {
			if p.Name == name {
				found = true
				continue
			}
			kept = append(kept, p)
		}
		if !found {
			return nil, domain.ErrProfileNotFound(name)
		}
		return kept, nil
	})
}

// updateProfiles applies fn to the stored profile list and writes the
// result back. Errors returned by fn are passed through unchanged.
func (s *Store) updateProfiles(ctx context.Context, fn func([]domain.Profile) ([]domain.Profile, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	apply := func(current []byte, ok bool) ([]byte, error) {
		profiles, err := decodeProfiles(current, ok)
		if err != nil {
			return nil, err
		}
		if profiles, err = fn(profiles); err != nil {
			return nil, err
		}
		data, err := json.Marshal(profiles)
		if err != nil {
			return nil, domain.ErrStore(err)
		}
		return data, nil
	}

	if u, ok := s.kv.(Updater); ok {
		if err := u.Update(ctx, KeyProfiles, apply); err != nil {
			var appErr *domain.AppError
			if errors.As(err, &appErr) {
				return err
			}
			return domain.ErrStore(err)
		}
		return nil
	}

	current, ok, err := s.kv.Get(ctx, KeyProfiles)
	if err != nil {
		return domain.ErrStore(err)
	}
	data, err := apply(current, ok)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyProfiles, data); err != nil {
		return domain.ErrStore(err)
	}
	return nil
}

// Settings returns the stored settings merged over the defaults.
func (s *Store) Settings(ctx context.Context) (domain.Settings, error) {
	settings := domain.DefaultSettings()

	data, ok, err := s.kv.Get(ctx, KeySettings)
	if err != nil {
		return settings, domain.ErrStore(err)
	}
	if !ok {
		return settings, nil
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return domain.DefaultSettings(), domain.ErrStore(err).WithDetails("settings value is not a JSON object")
	}
	if settings.ModelProvider == "" {
		settings.ModelProvider = domain.ProviderLocal
	}
	if settings.MaxContentSize <= 0 {
		settings.MaxContentSize = domain.DefaultMaxContentSize
	}
	if crypto.IsSealed(settings.APIKey) {
		if s.sealer == nil {
			return domain.DefaultSettings(), domain.ErrStore(crypto.ErrDecryptionFailed).WithDetails("API key is sealed but no encryption key is configured")
		}
		if settings.APIKey, err = s.sealer.Open(settings.APIKey); err != nil {
			return domain.DefaultSettings(), domain.ErrStore(err).WithDetails("API key could not be unsealed")
		}
	}
	return settings, nil
}

// SaveSettings validates and replaces the stored settings.
func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	settings.APIKey = strings.TrimSpace(settings.APIKey)
	settings.Model = strings.TrimSpace(settings.Model)
	if err := settings.Validate(); err != nil {
		return domain.Settings{}, err
	}

	stored := settings
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(settings.APIKey)
		if err != nil {
			return domain.Settings{}, domain.ErrStore(err)
		}
		stored.APIKey = sealed
	}
	if err := s.putJSON(ctx, KeySettings, stored); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return domain.ErrStore(err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return domain.ErrStore(err)
	}
	return nil
}

// An opening or closing tag of a real HTML element, or a comment. Free text
// like "Jane <jane@x.com>" does not match.
const htmlTagPattern = `(?i)<(?:!--|/?(?:` + htmlElements + `)(?:[\s/][^>]*)?>)`

const htmlElements = `a|abbr|address|article|aside|audio|b|base|blockquote|body|br|button|canvas|` +
	`code|del|details|div|em|embed|fieldset|font|footer|form|frame|h[1-6]|head|header|hr|html|i|` +
	`iframe|img|input|ins|label|li|link|main|marquee|meta|nav|noscript|object|ol|option|p|pre|q|s|` +
	`script|section|select|small|source|span|strong|style|sub|summary|sup|svg|table|tbody|td|` +
	`template|textarea|tfoot|th|thead|title|tr|u|ul|video`

var (
	htmlTag   = regexp.MustCompile(htmlTagPattern)
	htmlTagAt = regexp.MustCompile(`^(?:` + htmlTagPattern + `)`)
)

// plain drops HTML elements and keeps everything else as typed. Angle
// brackets that do not open a known element are escaped first so bluemonday
// keeps them as text, and its output is unescaped back.
func (s *Store) plain(v string) string {
	if !htmlTag.MatchString(v) {
		return v
	}

	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		switch c := v[i]; {
		case c == '&':
			b.WriteString("&amp;")
		case c == '<' && !htmlTagAt.MatchString(v[i:]):
			b.WriteString("&lt;")
		default:
			b.WriteByte(c)
		}
	}
	return html.UnescapeString(s.strip.Sanitize(b.String()))
}
