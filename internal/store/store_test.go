package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/config"
	"github.com/testforge/smartfill/internal/domain"
)

func newTestStore() (*Store, *Memory) {
	kv := NewMemory()
	s := New(kv)
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s, kv
}

func TestStore_ProfilesEmpty(t *testing.T) {
	s, _ := newTestStore()

	profiles, err := s.Profiles(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, profiles)
	assert.Empty(t, profiles)
}

func TestStore_SaveProfileUpsert(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	first, err := s.SaveProfile(ctx, domain.Profile{Name: " Work ", Info: "email: a@b.co"})
	require.NoError(t, err)
	assert.Equal(t, "Work", first.Name)

	_, err = s.SaveProfile(ctx, domain.Profile{Name: "Home", Info: "phone 0412345678"})
	require.NoError(t, err)

	updated, err := s.SaveProfile(ctx, domain.Profile{Name: "Work", Info: "email: new@b.co"})
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(first.UpdatedAt))

	profiles, err := s.Profiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Work", profiles[0].Name)
	assert.Equal(t, "email: new@b.co", profiles[0].Info)
	assert.Equal(t, "Home", profiles[1].Name)
}

func TestStore_SaveProfileValidation(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	tests := []struct {
		name    string
		profile domain.Profile
	}{
		{"empty name", domain.Profile{Name: "   "}},
		{"long name", domain.Profile{Name: strings.Repeat("名", 51)}},
		{"long info", domain.Profile{Name: "ok", Info: strings.Repeat("x", 1001)}},
		{"markup only name", domain.Profile{Name: "<script>x</script>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SaveProfile(ctx, tt.profile)
			require.Error(t, err)
			assert.True(t, domain.HasCode(err, domain.ErrCodeValidation))
		})
	}

	profiles, err := s.Profiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestStore_SaveProfileStripsMarkup(t *testing.T) {
	s, _ := newTestStore()

	p, err := s.SaveProfile(context.Background(), domain.Profile{
		Name: "<b>Jane</b> Doe",
		Info: `email: jane@x.com <img src=x onerror="alert(1)"> & co`,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.Equal(t, "email: jane@x.com  & co", p.Info)
}

func TestStore_SaveProfileKeepsAngleBracketText(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	tests := []struct {
		name string
		info string
		want string
	}{
		{
			name: "name and email",
			info: "Contact: John Smith <john@x.com>, phone 555-123-4567",
			want: "Contact: John Smith <john@x.com>, phone 555-123-4567",
		},
		{
			name: "comparison",
			info: "budget < 5000 & team > 3",
			want: "budget < 5000 & team > 3",
		},
		{
			name: "email next to real markup",
			info: "<b>Jane</b> <jane@x.com>",
			want: "Jane <jane@x.com>",
		},
		{
			name: "tag-like word",
			info: "<bob@x.com> <span-like>",
			want: "<bob@x.com> <span-like>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := s.SaveProfile(ctx, domain.Profile{Name: "John", Info: tt.info})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Info)

			stored, err := s.GetProfile(ctx, "John")
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Info)
		})
	}
}

func TestStore_GetAndDeleteProfile(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	_, err := s.SaveProfile(ctx, domain.Profile{Name: "A"})
	require.NoError(t, err)
	_, err = s.SaveProfile(ctx, domain.Profile{Name: "B"})
	require.NoError(t, err)

	got, err := s.GetProfile(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Name)

	_, err = s.GetProfile(ctx, "C")
	assert.True(t, domain.HasCode(err, domain.ErrCodeProfileNotFound))

	require.NoError(t, s.DeleteProfile(ctx, "A"))
	err = s.DeleteProfile(ctx, "A")
	assert.True(t, domain.HasCode(err, domain.ErrCodeProfileNotFound))

	profiles, err := s.Profiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "B", profiles[0].Name)
}

func TestStore_SettingsDefaults(t *testing.T) {
	s, _ := newTestStore()

	got, err := s.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)
}

func TestStore_SettingsMergedOverDefaults(t *testing.T) {
	s, kv := newTestStore()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, KeySettings, []byte(`{"modelProvider":"claude","apiKey":"k"}`)))

	got, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderClaude, got.ModelProvider)
	assert.Equal(t, "k", got.APIKey)
	assert.True(t, got.AutoAnalyze)
	assert.True(t, got.FallbackToLocal)
	assert.Equal(t, domain.DefaultMaxContentSize, got.MaxContentSize)
}

func TestStore_SaveSettings(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	in := domain.DefaultSettings()
	in.ModelProvider = domain.ProviderGemini
	in.APIKey = "  key  "
	in.MaxContentSize = 20

	saved, err := s.SaveSettings(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "key", saved.APIKey)

	got, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	in.ModelProvider = "mistral"
	_, err = s.SaveSettings(ctx, in)
	assert.True(t, domain.HasCode(err, domain.ErrCodeUnsupportedProvider))

	in.ModelProvider = domain.ProviderLocal
	in.MaxContentSize = 0
	_, err = s.SaveSettings(ctx, in)
	assert.True(t, domain.HasCode(err, domain.ErrCodeValidation))
}

func TestStore_CorruptValues(t *testing.T) {
	s, kv := newTestStore()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, KeyProfiles, []byte(`{"not":"a list"}`)))
	_, err := s.Profiles(ctx)
	assert.True(t, domain.HasCode(err, domain.ErrCodeStore))

	require.NoError(t, kv.Set(ctx, KeySettings, []byte(`[1,2]`)))
	_, err = s.Settings(ctx)
	assert.True(t, domain.HasCode(err, domain.ErrCodeStore))
}

type failingKV struct{ Memory }

func (f *failingKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestStore_BackendError(t *testing.T) {
	s := New(&failingKV{})

	_, err := s.Profiles(context.Background())
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrCodeStore))
	assert.Contains(t, err.Error(), "connection refused")
}

// updaterKV applies updates itself, like the postgres backend does in a
// transaction.
type updaterKV struct {
	*Memory
	updates int
	err     error
}

func (u *updaterKV) Update(ctx context.Context, key string, fn func([]byte, bool) ([]byte, error)) error {
	u.updates++
	if u.err != nil {
		return u.err
	}
	current, ok, err := u.Memory.Get(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	return u.Memory.Set(ctx, key, next)
}

func TestStore_ProfileWritesUseUpdater(t *testing.T) {
	ctx := context.Background()
	kv := &updaterKV{Memory: NewMemory()}
	s := New(kv)

	_, err := s.SaveProfile(ctx, domain.Profile{Name: "Jane", Info: "jane@x.com"})
	require.NoError(t, err)
	_, err = s.SaveProfile(ctx, domain.Profile{Name: "Jane", Info: "jane@y.com"})
	require.NoError(t, err)

	err = s.DeleteProfile(ctx, "Nobody")
	assert.True(t, domain.HasCode(err, domain.ErrCodeProfileNotFound))
	assert.Equal(t, 3, kv.updates)

	profiles, err := s.Profiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "jane@y.com", profiles[0].Info)

	kv.err = errors.New("could not serialize access")
	_, err = s.SaveProfile(ctx, domain.Profile{Name: "Jim"})
	assert.True(t, domain.HasCode(err, domain.ErrCodeStore))
	assert.Contains(t, err.Error(), "could not serialize access")
}

func TestOpen_Memory(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: config.StoreMemory}}

	backend, cache, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, cache)
	require.NoError(t, backend.Set(context.Background(), "k", []byte("v")))
	require.NoError(t, backend.Health(context.Background()))
	require.NoError(t, backend.Close())

	_, _, err = Open(context.Background(), &config.Config{Store: config.StoreConfig{Backend: "etcd"}}, zap.NewNop())
	assert.Error(t, err)
}

func TestStore_SealedAPIKey(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	opts, err := Options(&config.Config{Store: config.StoreConfig{EncryptionKey: "12345678901234567890123456789012"}})
	require.NoError(t, err)
	require.Len(t, opts, 1)
	s := New(kv, opts...)

	in := domain.DefaultSettings()
	in.ModelProvider = domain.ProviderOpenAI
	in.APIKey = "sk-live-key"
	saved, err := s.SaveSettings(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "sk-live-key", saved.APIKey)

	raw, ok, err := kv.Get(ctx, KeySettings)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, string(raw), "sk-live-key")
	assert.Contains(t, string(raw), "sealed:v1:")

	got, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-live-key", got.APIKey)

	// the same data without the key cannot be read
	_, err = New(kv).Settings(ctx)
	assert.True(t, domain.HasCode(err, domain.ErrCodeStore))
}

func TestStore_SealerReadsPlainKey(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Set(ctx, KeySettings, []byte(`{"modelProvider":"gemini","apiKey":"plain"}`)))

	opts, err := Options(&config.Config{Store: config.StoreConfig{EncryptionKey: "12345678901234567890123456789012"}})
	require.NoError(t, err)

	got, err := New(kv, opts...).Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "plain", got.APIKey)
}

func TestOptions(t *testing.T) {
	opts, err := Options(&config.Config{})
	require.NoError(t, err)
	assert.Empty(t, opts)

	_, err = Options(&config.Config{Store: config.StoreConfig{EncryptionKey: "short"}})
	assert.Error(t, err)
}
