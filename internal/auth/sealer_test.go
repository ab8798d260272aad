package auth

import (
	"crypto/sha256"
	"strings"
	"testing"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer("test-token-key-0123456789")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	return s
}

func TestSealer_RoundTrip(t *testing.T) {
	s := newTestSealer(t)

	for _, plain := range []string{"0123456789abcdef", "", "üñíçødé"} {
		sealed, err := s.Seal(plain)
		if err != nil {
			t.Fatalf("Seal(%q) error = %v", plain, err)
		}
		if !strings.HasPrefix(sealed, sealedPrefix) {
			t.Errorf("Seal(%q) = %q, missing prefix", plain, sealed)
		}
		if plain != "" && strings.Contains(sealed, plain) {
			t.Errorf("Seal(%q) leaks plaintext", plain)
		}

		got, err := s.Open(sealed)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if got != plain {
			t.Errorf("Open(Seal(%q)) = %q", plain, got)
		}
	}
}

func TestSealer_NonceIsRandom(t *testing.T) {
	s := newTestSealer(t)
	a, _ := s.Seal("same")
	b, _ := s.Seal("same")
	if a == b {
		t.Error("sealing twice should produce different ciphertexts")
	}
}

func TestSealer_PlaintextPassesThrough(t *testing.T) {
	s := newTestSealer(t)
	got, err := s.Open("legacy-plain-token")
	if err != nil || got != "legacy-plain-token" {
		t.Errorf("Open(plain) = %q, %v", got, err)
	}
}

func TestSealer_WrongKey(t *testing.T) {
	sealed, _ := newTestSealer(t).Seal("secret")

	other, _ := NewSealer("another-token-key-987654")
	if _, err := other.Open(sealed); err == nil {
		t.Error("Open() with the wrong key should fail")
	}
}

func TestSealer_Corrupt(t *testing.T) {
	s := newTestSealer(t)
	for _, bad := range []string{"v1:!!!", "v1:AAAA"} {
		if _, err := s.Open(bad); err == nil {
			t.Errorf("Open(%q) should fail", bad)
		}
	}
}

func TestNewSealer_ShortKey(t *testing.T) {
	if _, err := NewSealer("short"); err == nil {
		t.Error("NewSealer() should reject short keys")
	}
}

func TestNewSealer_DerivesStableKey(t *testing.T) {
	const secret = "test-token-key-0123456789"
	a, _ := NewSealer(secret)
	b, _ := NewSealer(secret)
	if a.key != b.key {
		t.Fatal("the same secret should derive the same key")
	}
	if a.key == sha256.Sum256([]byte(secret)) {
		t.Error("key should come from HKDF, not a bare hash of the secret")
	}

	sealed, _ := a.Seal("token")
	if got, err := b.Open(sealed); err != nil || got != "token" {
		t.Errorf("Open() across instances = %q, %v", got, err)
	}
}
