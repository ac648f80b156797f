package cryptox

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrSealed reports ciphertext that is truncated, tampered with, or sealed
// under a different key or purpose.
var ErrSealed = errors.New("cryptox: cannot open sealed value")

// LoadMasterKey reads key material from path. When path is empty it falls
// back to the CHEF_MASTER_KEY environment variable and finally to an
// ephemeral random key. Ephemeral keys don't survive restarts, which only
// costs in-flight logins their redirect round-trip.
func LoadMasterKey(path string) (key []byte, ephemeral bool, err error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read master key file: %w", err)
		}
		return data, false, nil
	}

	if env := os.Getenv("CHEF_MASTER_KEY"); env != "" {
		return []byte(env), false, nil
	}

	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate ephemeral master key: %w", err)
	}
	return key, true, nil
}

// Sealer encrypts short secrets (PKCE verifiers) for storage at rest with
// XChaCha20-Poly1305. The key is derived per purpose with HKDF-SHA256 so one
// master key can back several unrelated stores.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a purpose-bound key from master.
func NewSealer(master []byte, purpose string) (*Sealer, error) {
	if len(master) == 0 {
		return nil, errors.New("cryptox: empty master key")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, master, nil, []byte("aichef/"+purpose))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal returns base64url(nonce || ciphertext || tag). aad binds the value
// to its record (e.g. the login state) so sealed values can't be swapped
// between rows.
func (s *Sealer) Seal(plaintext, aad []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := s.aead.Seal(nonce, nonce, plaintext, aad)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string, aad []byte) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrSealed
	}

	ns := s.aead.NonceSize()
	if len(raw) < ns+s.aead.Overhead() {
		return nil, ErrSealed
	}

	plain, err := s.aead.Open(nil, raw[:ns], raw[ns:], aad)
	if err != nil {
		return nil, ErrSealed
	}
	return plain, nil
}
