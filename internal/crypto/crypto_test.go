package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

var testKey = []byte("12345678901234567890123456789012")

func newTestSealer(t *testing.T, key []byte) *Sealer {
	t.Helper()
	s, err := NewSealer(key)
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}
	return s
}

func TestSealOpen(t *testing.T) {
	s := newTestSealer(t, testKey)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"gemini key", "AIzaSyA-example-key"},
		{"anthropic key", "sk-ant-api03-example"},
		{"unicode", "clé-секрет-鍵"},
		{"special characters", "p@ss!#$%^&*()_+-=[]{}|;':\",./<>?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := s.Seal(tt.plaintext)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if !IsSealed(sealed) {
				t.Fatalf("Seal() = %q, missing prefix", sealed)
			}
			if strings.Contains(sealed, tt.plaintext) {
				t.Error("sealed value contains the plaintext")
			}

			opened, err := s.Open(sealed)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if opened != tt.plaintext {
				t.Errorf("Open() = %q, want %q", opened, tt.plaintext)
			}
		})
	}
}

func TestSeal_PassThrough(t *testing.T) {
	s := newTestSealer(t, testKey)

	got, err := s.Seal("")
	if err != nil || got != "" {
		t.Errorf("Seal(\"\") = %q, %v", got, err)
	}

	sealed, _ := s.Seal("key")
	again, err := s.Seal(sealed)
	if err != nil || again != sealed {
		t.Errorf("sealing twice changed the value: %q -> %q (%v)", sealed, again, err)
	}
}

func TestSeal_NonceVaries(t *testing.T) {
	s := newTestSealer(t, testKey)

	a, _ := s.Seal("same")
	b, _ := s.Seal("same")
	if a == b {
		t.Error("two seals of the same value should differ")
	}
}

func TestOpen_Plaintext(t *testing.T) {
	s := newTestSealer(t, testKey)

	got, err := s.Open("legacy-plain-key")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got != "legacy-plain-key" {
		t.Errorf("Open() = %q", got)
	}
}

func TestOpen_Invalid(t *testing.T) {
	s := newTestSealer(t, testKey)

	tests := []struct {
		name  string
		value string
		want  error
	}{
		{"bad base64", sealedPrefix + "not-base64!!!", ErrInvalidCiphertext},
		{"too short", sealedPrefix + base64.StdEncoding.EncodeToString([]byte("short")), ErrInvalidCiphertext},
		{"tampered", sealedPrefix + base64.StdEncoding.EncodeToString(make([]byte, 40)), ErrDecryptionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Open(tt.value)
			if !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpen_WrongKey(t *testing.T) {
	sealed, err := newTestSealer(t, testKey).Seal("secret")
	if err != nil {
		t.Fatal(err)
	}

	other := newTestSealer(t, []byte("abcdefghijklmnopqrstuvwxyz123456"))
	if _, err := other.Open(sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Open() with wrong key error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestNewSealer_InvalidKey(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33} {
		if _, err := NewSealer(make([]byte, n)); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("NewSealer(%d bytes) error = %v, want %v", n, err, ErrInvalidKey)
		}
	}
}

func TestParseKey(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(testKey)

	tests := []struct {
		name    string
		in      string
		wantLen int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"base64", b64, 32, false},
		{"raw", string(testKey), 32, false},
		{"too short", "short", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(key) != tt.wantLen {
				t.Errorf("ParseKey() len = %d, want %d", len(key), tt.wantLen)
			}
		})
	}
}
