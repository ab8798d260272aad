package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

// sealedPrefix marks a value produced by Sealer.Seal. Values without it are
// treated as plaintext, so rows written before sealing was enabled keep working.
const sealedPrefix = "v1:"

const nonceSize = 24

// sealerInfo binds derived keys to this use, so the same configured secret
// never yields the same key anywhere else.
const sealerInfo = "shamebot todoist token v1"

// Sealer encrypts Todoist access tokens before they reach the database.
//
// NaCl secretbox (XSalsa20 + Poly1305) gives authenticated encryption with a
// 32-byte key; the key is derived from the configured secret with
// HKDF-SHA256. Each value
// gets a random 24-byte nonce stored in front of the ciphertext.
type Sealer struct {
	key [32]byte
}

// NewSealer derives a key from secret.
func NewSealer(secret string) (*Sealer, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: token key must be at least 16 characters")
	}
	s := &Sealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealerInfo))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("auth: deriving token key: %w", err)
	}
	return s, nil
}

// Seal encrypts plaintext.
func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("auth: generating nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal. Unprefixed input is returned unchanged.
func (s *Sealer) Open(sealed string) (string, error) {
	encoded, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return sealed, nil
	}

	box, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("auth: decoding sealed token: %w", err)
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return "", errors.New("auth: sealed token too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errors.New("auth: sealed token failed authentication")
	}
	return string(plain), nil
}
